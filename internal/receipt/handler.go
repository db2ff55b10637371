package receipt

import (
	"context"
	"errors"
	"fmt"
)

// Handler validates receipts before they reach a Store.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Accept validates u and saves it, returning the stored reference.
func (h *Handler) Accept(ctx context.Context, u Upload) (string, error) {
	if _, err := Validate(u); err != nil {
		return "", err
	}
	ref, err := h.store.Save(ctx, u)
	if err != nil {
		return "", fmt.Errorf("save receipt: %w", err)
	}
	return ref, nil
}

// AcceptReference resolves a reference supplied by a client. A data URI is
// decoded and saved like any upload; a reference issued earlier by the store
// (the upload-receipt endpoint) is re-read and re-validated.
func (h *Handler) AcceptReference(ctx context.Context, ref string) (string, error) {
	if IsDataURI(ref) {
		u, err := ParseDataURI(ref)
		if err != nil {
			return "", err
		}
		return h.Accept(ctx, u)
	}
	if !h.store.Owns(ref) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPayload, ErrUnknownReference)
	}
	u, err := h.store.Open(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrUnknownReference) {
			return "", fmt.Errorf("%w: %s", ErrInvalidPayload, err)
		}
		return "", err
	}
	if _, err := Validate(u); err != nil {
		return "", err
	}
	return ref, nil
}

// Discard removes a stored blob. Empty and foreign references are ignored.
func (h *Handler) Discard(ctx context.Context, ref string) error {
	if ref == "" || !h.store.Owns(ref) {
		return nil
	}
	return h.store.Delete(ctx, ref)
}
