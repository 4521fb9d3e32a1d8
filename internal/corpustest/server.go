// Package corpustest provides an in-memory corpus server for tests.
package corpustest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/cinderlab/cinder/internal/digest"
	"github.com/google/uuid"
)

// Route names accepted by Fail and Calls.
const (
	RouteCreateProject = "create_project"
	RouteGetProject    = "get_project"
	RouteUpdateProject = "update_project"
	RouteListFiles     = "list_files"
	RouteDeleteFile    = "delete_file"
	RouteDownload      = "download"
	RouteOpenUpload    = "open_upload"
	RouteChunk         = "chunk"
	RouteComplete      = "complete"
)

// Project is a stored remote project.
type Project struct {
	ID          int64
	Name        string
	Description string
	Hash        string
	GlobalID    string
	Metadata    json.RawMessage
}

// File is a stored remote file.
type File struct {
	ID            int64
	ProjectID     int64
	Name          string
	Path          []string
	Hash          string
	Category      string
	Content       []byte
	ContentLoaded bool
}

type upload struct {
	id       string
	filename string
	size     int64
	hash     string
	category string
	data     []byte
}

// Server is a fake corpus server backed by maps.
type Server struct {
	Server *httptest.Server
	APIKey string
	// ChunkSize is handed out to new upload sessions.
	ChunkSize int64
	// StringMetadata stores and returns project metadata as a JSON string.
	StringMetadata bool
	// LegacyFileNames lists files with "filename" instead of "name".
	LegacyFileNames bool

	mu            sync.Mutex
	nextID        int64
	projects      map[int64]*Project
	files         map[int64]*File
	uploads       map[string]*upload
	calls         map[string]int
	faults        map[string]map[int]int
	corrupt       int
	bytesReceived int64
}

// New starts a server that accepts apiKey. It is closed with the test.
func New(t *testing.T, apiKey string) *Server {
	t.Helper()

	s := &Server{
		APIKey:    apiKey,
		ChunkSize: 8,
		projects:  make(map[int64]*Project),
		files:     make(map[int64]*File),
		uploads:   make(map[string]*upload),
		calls:     make(map[string]int),
		faults:    make(map[string]map[int]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/projects", s.route(RouteCreateProject, s.createProject))
	mux.HandleFunc("GET /api/projects/{id}", s.route(RouteGetProject, s.getProject))
	mux.HandleFunc("PATCH /api/projects/{id}", s.route(RouteUpdateProject, s.updateProject))
	mux.HandleFunc("GET /api/projects/{id}/files", s.route(RouteListFiles, s.listFiles))
	mux.HandleFunc("DELETE /api/files/{id}", s.route(RouteDeleteFile, s.deleteFile))
	mux.HandleFunc("GET /api/files/{id}/download", s.route(RouteDownload, s.download))
	mux.HandleFunc("POST /api/files/chunked", s.route(RouteOpenUpload, s.openUpload))
	mux.HandleFunc("POST /api/files/chunked/{upload_id}", s.route(RouteChunk, s.chunk))
	mux.HandleFunc("POST /api/files/chunked/{upload_id}/complete", s.route(RouteComplete, s.complete))

	s.Server = httptest.NewServer(s.auth(mux))
	t.Cleanup(s.Server.Close)
	return s
}

// URL is the server's base URL.
func (s *Server) URL() string {
	return s.Server.URL
}

// Fail makes the nth call from now on to route answer with status.
func (s *Server) Fail(route string, nth, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faults[route] == nil {
		s.faults[route] = make(map[int]int)
	}
	s.faults[route][s.calls[route]+nth] = status
}

// CorruptDownloads makes the next n downloads send altered bytes.
func (s *Server) CorruptDownloads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrupt = n
}

// Calls returns how often route has been hit, failed calls included.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// BytesReceived is the total size of all accepted chunks.
func (s *Server) BytesReceived() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesReceived
}

// Project returns a copy of the stored project.
func (s *Server) Project(id int64) (Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return Project{}, false
	}
	return *p, true
}

// Files returns the project's files ordered by id.
func (s *Server) Files(projectID int64) []File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectFiles(projectID)
}

// SeedProject stores a project directly, bypassing the API.
func (s *Server) SeedProject(p Project) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = s.nextID
	s.projects[p.ID] = &p
	return p.ID
}

// SeedFile stores a file directly, bypassing the API.
func (s *Server) SeedFile(projectID int64, category string, path []string, name string, content []byte) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	if path == nil {
		path = []string{}
	}
	s.files[s.nextID] = &File{
		ID:        s.nextID,
		ProjectID: projectID,
		Name:      name,
		Path:      path,
		Hash:      digest.Bytes(content),
		Category:  category,
		Content:   content,
	}
	return s.nextID
}

func (s *Server) projectFiles(projectID int64) []File {
	var out []File
	for _, f := range s.files {
		if f.ProjectID == projectID {
			out = append(out, *f)
		}
	}
	slices.SortFunc(out, func(a, b File) int { return int(a.ID - b.ID) })
	return out
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" || key != s.APIKey {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// route counts calls and applies injected faults before handing over.
func (s *Server) route(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[name]++
		status, fail := s.faults[name][s.calls[name]]
		if fail {
			delete(s.faults[name], s.calls[name])
		}
		s.mu.Unlock()

		if fail {
			http.Error(w, "injected failure", status)
			return
		}
		h(w, r)
	}
}

type projectBody struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Hash        string          `json:"hash"`
	Metadata    json.RawMessage `json:"metadata"`
	GlobalID    string          `json:"global_id"`
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var body projectBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.nextID++
	p := &Project{ID: s.nextID, Name: body.Name, Description: body.Description, Hash: body.Hash, GlobalID: body.GlobalID, Metadata: body.Metadata}
	s.projects[p.ID] = p
	resp := s.projectJSON(p)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[pathID(r, "id")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.projectJSON(p))
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	var body projectBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[pathID(r, "id")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	p.Name, p.Description, p.Hash, p.GlobalID, p.Metadata = body.Name, body.Description, body.Hash, body.GlobalID, body.Metadata
	writeJSON(w, http.StatusOK, s.projectJSON(p))
}

func (s *Server) projectJSON(p *Project) map[string]any {
	var metadata any = p.Metadata
	if s.StringMetadata {
		metadata = string(p.Metadata)
	}
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"hash":        p.Hash,
		"global_id":   p.GlobalID,
		"metadata":    metadata,
	}
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(r, "id")
	if _, ok := s.projects[id]; !ok {
		http.NotFound(w, r)
		return
	}

	nameKey := "name"
	if s.LegacyFileNames {
		nameKey = "filename"
	}
	out := []map[string]any{}
	for _, f := range s.projectFiles(id) {
		out = append(out, map[string]any{
			"id":            f.ID,
			nameKey:         f.Name,
			"path":          f.Path,
			"hash":          f.Hash,
			"file_category": f.Category,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(r, "id")
	if _, ok := s.files[id]; !ok {
		http.NotFound(w, r)
		return
	}
	delete(s.files, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	f, ok := s.files[pathID(r, "id")]
	var content []byte
	if ok {
		content = slices.Clone(f.Content)
	}
	if ok && s.corrupt > 0 {
		s.corrupt--
		content = append(content, []byte("garbage")...)
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (s *Server) openUpload(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filename string `json:"filename"`
		Size     int64  `json:"size"`
		DataHash string `json:"data_hash"`
		Category string `json:"file_category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Filename == "" {
		http.Error(w, "invalid upload", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	u := &upload{id: uuid.NewString(), filename: body.Filename, size: body.Size, hash: body.DataHash, category: body.Category}
	s.uploads[u.id] = u
	chunk := s.ChunkSize
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"upload_id": u.id, "chunk_size": chunk})
}

func (s *Server) chunk(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	offset, err := strconv.ParseInt(r.FormValue("offset"), 10, 64)
	if err != nil {
		http.Error(w, "invalid offset", http.StatusBadRequest)
		return
	}
	part, _, err := r.FormFile("chunk")
	if err != nil {
		http.Error(w, "missing chunk", http.StatusBadRequest)
		return
	}
	defer part.Close()
	data, err := io.ReadAll(part)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[r.PathValue("upload_id")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if int64(len(data)) > s.ChunkSize {
		http.Error(w, "chunk too large", http.StatusBadRequest)
		return
	}

	// A client that is out of step is told where to continue.
	if offset != int64(len(u.data)) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "in-progress", "offset": len(u.data)})
		return
	}
	u.data = append(u.data, data...)
	s.bytesReceived += int64(len(data))

	status := "in-progress"
	if int64(len(u.data)) >= u.size {
		status = "complete"
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "offset": len(u.data)})
}

func (s *Server) complete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FileID          *int64   `json:"file_id"`
		CreateFile      bool     `json:"create_file"`
		LoadFileContent bool     `json:"load_file_content"`
		ProjectID       int64    `json:"project_id"`
		Path            []string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("upload_id")
	u, ok := s.uploads[id]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if int64(len(u.data)) != u.size || digest.Bytes(u.data) != u.hash {
		http.Error(w, "upload incomplete or corrupt", http.StatusBadRequest)
		return
	}

	switch {
	case body.FileID != nil:
		f, ok := s.files[*body.FileID]
		if !ok {
			http.NotFound(w, r)
			return
		}
		f.Content, f.Hash, f.ContentLoaded = u.data, u.hash, body.LoadFileContent
		delete(s.uploads, id)
		writeJSON(w, http.StatusOK, map[string]any{"id": f.ID})
	case body.CreateFile:
		if _, ok := s.projects[body.ProjectID]; !ok {
			http.Error(w, "unknown project", http.StatusBadRequest)
			return
		}
		path := body.Path
		if path == nil {
			path = []string{}
		}
		s.nextID++
		f := &File{
			ID:            s.nextID,
			ProjectID:     body.ProjectID,
			Name:          u.filename,
			Path:          path,
			Hash:          u.hash,
			Category:      u.category,
			Content:       u.data,
			ContentLoaded: body.LoadFileContent,
		}
		s.files[f.ID] = f
		delete(s.uploads, id)
		writeJSON(w, http.StatusCreated, map[string]any{"id": f.ID})
	default:
		http.Error(w, "nothing to complete", http.StatusBadRequest)
	}
}

func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
