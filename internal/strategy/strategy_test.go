package strategy

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"tradesim/internal/domain"
)

type stubStrategy struct {
	name     string
	lookback int
}

func (s *stubStrategy) Name() string                                { return s.name }
func (s *stubStrategy) MaxLookback() int                            { return s.lookback }
func (s *stubStrategy) GenerateSignal([]domain.Candle) *domain.Signal { return nil }

func stubFactory(name string) Factory {
	return func(params []byte) (Strategy, error) {
		return &stubStrategy{name: name, lookback: len(params)}, nil
	}
}

func TestRegistryBuildUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Build("nope", nil)
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("Build(unknown) error = %v, want ErrUnknownStrategy", err)
	}
}

func TestRegistryRegisterAndList(t *testing.T) {
	r := NewRegistry()
	r.Register("beta", stubFactory("beta"))
	r.Register("alpha", stubFactory("alpha"))

	if got, want := r.List(), []string{"alpha", "beta"}; !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}

	s, err := r.Build("alpha", nil)
	if err != nil {
		t.Fatalf("Build(alpha) failed: %v", err)
	}
	if s.Name() != "alpha" {
		t.Errorf("built strategy name = %q, want alpha", s.Name())
	}
}

func TestRegistryBuildWrapsFactoryError(t *testing.T) {
	r := NewRegistry()
	r.Register("broken", func([]byte) (Strategy, error) {
		return nil, fmt.Errorf("bad params")
	})
	if _, err := r.Build("broken", nil); err == nil {
		t.Fatal("Build(broken) succeeded, want error")
	}
}

func TestCatalogPrefersStoredDefinition(t *testing.T) {
	r := NewRegistry()
	r.Register("kind", stubFactory("kind"))
	r.Register("alpha", stubFactory("alpha"))

	defs := newTestStore(t, r)
	if _, err := defs.Add(t.Context(), Definition{Name: "custom", Kind: "kind", Params: "x: 1\n"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	c := NewCatalog(r, defs)
	s, err := c.Build("custom")
	if err != nil {
		t.Fatalf("Build(custom) failed: %v", err)
	}
	// The stub factory reports the payload length through MaxLookback, so a
	// non-zero value proves the stored params reached the factory.
	if s.MaxLookback() == 0 {
		t.Error("stored definition params were not passed to the factory")
	}

	// Built-ins still resolve directly.
	if _, err := c.Build("alpha"); err != nil {
		t.Errorf("Build(alpha) failed: %v", err)
	}
	if _, err := c.Build("ghost"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("Build(ghost) error = %v, want ErrUnknownStrategy", err)
	}

	want := []string{"alpha", "custom", "kind"}
	if got := c.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestCatalogWithoutStore(t *testing.T) {
	r := NewRegistry()
	r.Register("alpha", stubFactory("alpha"))

	c := NewCatalog(r, nil)
	if _, err := c.Build("alpha"); err != nil {
		t.Fatalf("Build(alpha) failed: %v", err)
	}
	if got, want := c.List(), []string{"alpha"}; !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}
