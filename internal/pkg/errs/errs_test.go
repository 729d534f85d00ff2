package errs

import (
	"net/http"
	"testing"
)

func TestNewErrorKnownCode(t *testing.T) {
	err := NewError(ErrChatNotFound)

	if err.Code != ErrChatNotFound {
		t.Fatalf("code = %d, want %d", err.Code, ErrChatNotFound)
	}
	if err.Message == "" {
		t.Fatal("known code produced an empty message")
	}
	if err.Status != http.StatusOK {
		t.Fatalf("status = %d, want default %d", err.Status, http.StatusOK)
	}
}

func TestNewErrorUnknownCodeFallsBack(t *testing.T) {
	err := NewError(9999)

	if err.Code != ErrUnknown {
		t.Fatalf("code = %d, want fallback %d", err.Code, ErrUnknown)
	}
	if err.Status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", err.Status, http.StatusInternalServerError)
	}
}

func TestNewErrorCarriesHTTPStatus(t *testing.T) {
	err := NewError(ErrUnauthorized)

	if err.Status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", err.Status, http.StatusUnauthorized)
	}
}
