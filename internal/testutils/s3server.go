package testutils

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
)

// S3Request is one call received by S3Server.
type S3Request struct {
	Method string
	Bucket string
	Key    string
	Body   []byte
}

// S3Server is a path-style S3 endpoint good enough for HeadBucket,
// CreateBucket and single-part PutObject.
type S3Server struct {
	*httptest.Server

	mu       sync.Mutex
	buckets  map[string]map[string][]byte
	requests []S3Request

	// DenyCreate makes CreateBucket fail with AccessDenied.
	DenyCreate bool
	// DenyHead makes HeadBucket fail with 403.
	DenyHead bool
	// DenyPut makes PutObject fail with AccessDenied.
	DenyPut bool
}

func NewS3Server(existing ...string) *S3Server {
	s := &S3Server{buckets: make(map[string]map[string][]byte)}
	for _, b := range existing {
		s.buckets[b] = make(map[string][]byte)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *S3Server) handle(w http.ResponseWriter, r *http.Request) {
	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, S3Request{Method: r.Method, Bucket: bucket, Key: key, Body: body})
	objects, exists := s.buckets[bucket]

	switch {
	case r.Method == http.MethodHead && key == "":
		switch {
		case s.DenyHead:
			w.WriteHeader(http.StatusForbidden)
		case exists:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}

	case r.Method == http.MethodPut && key == "":
		switch {
		case s.DenyCreate:
			writeError(w, http.StatusForbidden, "AccessDenied", "Access Denied")
		case exists:
			writeError(w, http.StatusConflict, "BucketAlreadyOwnedByYou", "Your previous request to create the named bucket succeeded")
		default:
			s.buckets[bucket] = make(map[string][]byte)
			w.Header().Set("Location", "/"+bucket)
			w.WriteHeader(http.StatusOK)
		}

	case r.Method == http.MethodPut:
		switch {
		case s.DenyPut:
			writeError(w, http.StatusForbidden, "AccessDenied", "Access Denied")
		case !exists:
			writeError(w, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")
		default:
			objects[key] = body
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.WriteHeader(http.StatusOK)
		}

	default:
		writeError(w, http.StatusNotImplemented, "NotImplemented", "not supported by the test server")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>`+code+`</Code><Message>`+message+`</Message></Error>`)
}

// Requests returns every request received so far.
func (s *S3Server) Requests() []S3Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]S3Request(nil), s.requests...)
}

// Methods returns "METHOD bucket[/key]" for every request, in order.
func (s *S3Server) Methods() []string {
	var out []string
	for _, r := range s.Requests() {
		target := r.Bucket
		if r.Key != "" {
			target += "/" + r.Key
		}
		out = append(out, r.Method+" "+target)
	}
	return out
}

func (s *S3Server) HasBucket(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.buckets[name]
	return ok
}

// Objects returns the sorted keys stored in bucket.
func (s *S3Server) Objects(bucket string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *S3Server) Object(bucket, key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buckets[bucket][key]
}
