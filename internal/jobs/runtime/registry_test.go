package runtime

import "testing"

type stubHandler struct {
	jobType string
}

func (s *stubHandler) Type() string           { return s.jobType }
func (s *stubHandler) Run(ctx *Context) error { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubHandler{jobType: "probe"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, ok := r.Get("probe"); !ok {
		t.Fatal("registered handler not found")
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatal("unregistered job type resolved")
	}
	if err := r.Register(&stubHandler{jobType: "probe"}); err == nil {
		t.Fatal("duplicate registration should fail")
	}
	if err := r.Register(&stubHandler{}); err == nil {
		t.Fatal("empty job type should fail")
	}
	if err := r.Register(nil); err == nil {
		t.Fatal("nil handler should fail")
	}
}
