// Package netboxtest provides an in-memory NetBox REST API for tests.
package netboxtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Object is a stored NetBox object in its JSON-decoded form
type Object = map[string]interface{}

// Request records one call made against the server
type Request struct {
	Method string
	Path   string
	// Authorization is the raw Authorization header
	Authorization string
}

// Server serves /api/<app>/<endpoint>/[<id>/] for any collection
type Server struct {
	*httptest.Server

	// PageSize bounds list responses; clients must follow "next"
	PageSize int

	mu       sync.Mutex
	nextID   int
	objects  map[string]map[int]Object
	requests []Request
}

// New starts a server; callers must Close it
func New() *Server {
	s := &Server{
		PageSize: 50,
		objects:  make(map[string]map[int]Object),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Add stores obj in collection ("dcim/devices") and returns its ID
func (s *Server) Add(collection string, obj Object) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insert(collection, normalize(obj))
}

// Objects returns the stored objects of a collection ordered by ID
func (s *Server) Objects(collection string) []Object {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.sortedIDs(collection)
	out := make([]Object, len(ids))
	for i, id := range ids {
		out[i] = s.objects[collection][id]
	}
	return out
}

// Find returns the first object whose field equals value
func (s *Server) Find(collection, field string, value interface{}) Object {
	for _, obj := range s.Objects(collection) {
		if fmt.Sprint(obj[field]) == fmt.Sprint(value) {
			return obj
		}
	}
	return nil
}

// Count returns the number of objects in a collection
func (s *Server) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.objects[collection])
}

// Writes returns the number of non-GET requests received so far
func (s *Server) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.requests {
		if r.Method != http.MethodGet {
			n++
		}
	}
	return n
}

// Requests returns a copy of the request log
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Request(nil), s.requests...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Authorization: r.Header.Get("Authorization")})

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 3 || len(parts) > 4 || parts[0] != "api" {
		http.NotFound(w, r)
		return
	}
	collection := parts[1] + "/" + parts[2]

	id := 0
	if len(parts) == 4 {
		n, err := strconv.Atoi(parts[3])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		id = n
	}

	switch r.Method {
	case http.MethodGet:
		if id != 0 {
			obj, ok := s.objects[collection][id]
			if !ok {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, http.StatusOK, obj)
			return
		}
		s.list(w, r, collection)

	case http.MethodPost:
		var obj Object
		if err := json.NewDecoder(r.Body).Decode(&obj); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		newID := s.insert(collection, obj)
		writeJSON(w, http.StatusCreated, s.objects[collection][newID])

	case http.MethodPatch:
		obj, ok := s.objects[collection][id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		var changes Object
		if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for k, v := range changes {
			obj[k] = v
		}
		s.expandTags(obj)
		writeJSON(w, http.StatusOK, obj)

	case http.MethodDelete:
		if _, ok := s.objects[collection][id]; !ok {
			http.NotFound(w, r)
			return
		}
		s.delete(collection, id)
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) insert(collection string, obj Object) int {
	s.nextID++
	obj["id"] = float64(s.nextID)
	s.expandTags(obj)
	if s.objects[collection] == nil {
		s.objects[collection] = make(map[int]Object)
	}
	s.objects[collection][s.nextID] = obj
	return s.nextID
}

// delete removes an object and cascades like NetBox does for devices and interfaces
func (s *Server) delete(collection string, id int) {
	delete(s.objects[collection], id)

	switch collection {
	case "dcim/devices":
		for ifaceID, iface := range s.objects["dcim/interfaces"] {
			if refID(iface["device"]) == id {
				s.delete("dcim/interfaces", ifaceID)
			}
		}
	case "dcim/interfaces":
		for cableID, cable := range s.objects["dcim/cables"] {
			if terminates(cable, "a_terminations", id) || terminates(cable, "b_terminations", id) {
				delete(s.objects["dcim/cables"], cableID)
			}
		}
	}
}

// expandTags turns a list of tag IDs into nested tag objects
func (s *Server) expandTags(obj Object) {
	tags, ok := obj["tags"].([]interface{})
	if !ok {
		return
	}
	out := make([]interface{}, 0, len(tags))
	for _, t := range tags {
		id := refID(t)
		nested := Object{"id": float64(id)}
		if tag, ok := s.objects["extras/tags"][id]; ok {
			nested["slug"] = tag["slug"]
			nested["name"] = tag["name"]
		}
		out = append(out, nested)
	}
	obj["tags"] = out
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, collection string) {
	query := r.URL.Query()
	offset, _ := strconv.Atoi(query.Get("offset"))

	var matched []Object
	for _, id := range s.sortedIDs(collection) {
		obj := s.objects[collection][id]
		if matches(obj, query) {
			matched = append(matched, obj)
		}
	}

	end := offset + s.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	page := []Object{}
	if offset < len(matched) {
		page = matched[offset:end]
	}

	var next interface{}
	if end < len(matched) {
		q := cloneValues(query)
		q.Set("offset", strconv.Itoa(end))
		next = s.URL + r.URL.Path + "?" + q.Encode()
	}

	writeJSON(w, http.StatusOK, Object{
		"count":   len(matched),
		"next":    next,
		"results": page,
	})
}

func (s *Server) sortedIDs(collection string) []int {
	ids := make([]int, 0, len(s.objects[collection]))
	for id := range s.objects[collection] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func matches(obj Object, query url.Values) bool {
	for key, values := range query {
		if key == "offset" || key == "limit" {
			continue
		}
		if !matchAny(obj, key, values) {
			return false
		}
	}
	return true
}

func matchAny(obj Object, key string, values []string) bool {
	for _, v := range values {
		if matchOne(obj, key, v) {
			return true
		}
	}
	return false
}

func matchOne(obj Object, key, value string) bool {
	switch key {
	case "tag":
		tags, _ := obj["tags"].([]interface{})
		for _, t := range tags {
			if m, ok := t.(map[string]interface{}); ok && fmt.Sprint(m["slug"]) == value {
				return true
			}
		}
		return false
	case "termination_a_type", "termination_b_type", "termination_a_id", "termination_b_id":
		side := "a_terminations"
		if strings.HasPrefix(key, "termination_b") {
			side = "b_terminations"
		}
		terms, _ := obj[side].([]interface{})
		for _, t := range terms {
			m, ok := t.(map[string]interface{})
			if !ok {
				continue
			}
			if strings.HasSuffix(key, "_type") && fmt.Sprint(m["object_type"]) == value {
				return true
			}
			if strings.HasSuffix(key, "_id") && strconv.Itoa(refID(m["object_id"])) == value {
				return true
			}
		}
		return false
	}

	if field, ok := strings.CutSuffix(key, "_id"); ok {
		if _, present := obj[field]; present {
			return strconv.Itoa(refID(obj[field])) == value
		}
	}
	return fmt.Sprint(obj[key]) == value
}

func terminates(cable Object, side string, id int) bool {
	terms, _ := cable[side].([]interface{})
	for _, t := range terms {
		if m, ok := t.(map[string]interface{}); ok && refID(m["object_id"]) == id {
			return true
		}
	}
	return false
}

func refID(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case map[string]interface{}:
		return refID(n["id"])
	}
	return 0
}

func normalize(obj Object) Object {
	data, err := json.Marshal(obj)
	if err != nil {
		panic(err)
	}
	var out Object
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
