package strategy

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T, r *Registry) *DefinitionStore {
	t.Helper()
	s, err := NewDefinitionStore(filepath.Join(t.TempDir(), "strategies.db"), r)
	if err != nil {
		t.Fatalf("NewDefinitionStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRegistry() *Registry {
	r := NewRegistry()
	r.Register("kind", stubFactory("kind"))
	return r
}

func TestDefinitionStoreRoundTrip(t *testing.T) {
	s := newTestStore(t, testRegistry())
	ctx := t.Context()

	added, err := s.Add(ctx, Definition{Name: "mine", Kind: "kind", Params: "window: 7\n"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if added.CreatedAt.IsZero() || added.UpdatedAt.IsZero() {
		t.Error("Add did not stamp timestamps")
	}

	got, err := s.Get("mine")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Kind != "kind" || got.Params != "window: 7\n" {
		t.Errorf("Get returned %+v", got)
	}

	edited, err := s.Edit(ctx, Definition{Name: "mine", Kind: "kind", Params: "window: 9\n"})
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if !edited.CreatedAt.Equal(added.CreatedAt) {
		t.Error("Edit changed CreatedAt")
	}
	got, _ = s.Get("mine")
	if got.Params != "window: 9\n" {
		t.Errorf("params after edit = %q, want window: 9", got.Params)
	}

	defs, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(defs) != 1 || defs[0].Name != "mine" {
		t.Errorf("List() = %+v, want one entry named mine", defs)
	}

	if err := s.Delete(ctx, "mine"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get("mine"); !errors.Is(err, ErrDefinitionNotFound) {
		t.Errorf("Get after delete error = %v, want ErrDefinitionNotFound", err)
	}
	if err := s.Delete(ctx, "mine"); !errors.Is(err, ErrDefinitionNotFound) {
		t.Errorf("second Delete error = %v, want ErrDefinitionNotFound", err)
	}
}

func TestDefinitionStoreValidation(t *testing.T) {
	s := newTestStore(t, testRegistry())
	ctx := t.Context()

	var verr *ValidationError
	cases := []struct {
		name string
		def  Definition
	}{
		{"empty name", Definition{Kind: "kind"}},
		{"unknown kind", Definition{Name: "x", Kind: "ghost"}},
		{"malformed yaml", Definition{Name: "x", Kind: "kind", Params: "::: not yaml"}},
		{"shadows builtin", Definition{Name: "kind", Kind: "kind"}},
	}
	for _, tc := range cases {
		if _, err := s.Add(ctx, tc.def); !errors.As(err, &verr) {
			t.Errorf("%s: Add error = %v, want ValidationError", tc.name, err)
		}
	}

	// Duplicate names are rejected.
	if _, err := s.Add(ctx, Definition{Name: "dup", Kind: "kind"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := s.Add(ctx, Definition{Name: "dup", Kind: "kind"}); !errors.As(err, &verr) {
		t.Errorf("duplicate Add error = %v, want ValidationError", err)
	}

	// Factory rejections surface as validation errors.
	r := testRegistry()
	r.Register("picky", func(params []byte) (Strategy, error) {
		if len(params) > 0 {
			return nil, errors.New("no params accepted")
		}
		return &stubStrategy{name: "picky"}, nil
	})
	s2 := newTestStore(t, r)
	if _, err := s2.Add(ctx, Definition{Name: "y", Kind: "picky", Params: "a: 1\n"}); !errors.As(err, &verr) {
		t.Errorf("factory rejection error = %v, want ValidationError", err)
	}
}

func TestDefinitionStoreEditMissing(t *testing.T) {
	s := newTestStore(t, testRegistry())
	if _, err := s.Edit(t.Context(), Definition{Name: "ghost", Kind: "kind"}); !errors.Is(err, ErrDefinitionNotFound) {
		t.Errorf("Edit(ghost) error = %v, want ErrDefinitionNotFound", err)
	}
}
