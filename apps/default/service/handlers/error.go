package handlers

import (
	"context"
	"net/http"
)

type providerError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorHint        string `json:"error_hint,omitempty"`
}

// ErrorEndpoint is where hydra sends the browser when it cannot complete a flow itself.
func (h *AuthServer) ErrorEndpoint(rw http.ResponseWriter, req *http.Request) error {
	h.writeJSON(req.Context(), rw, http.StatusBadRequest, &providerError{
		Error:            req.FormValue("error"),
		ErrorDescription: req.FormValue("error_description"),
		ErrorHint:        req.FormValue("error_hint"),
	})
	return nil
}

func (h *AuthServer) writeBadRequest(ctx context.Context, w http.ResponseWriter, err error) {
	h.writeJSON(ctx, w, http.StatusBadRequest, &ErrorResponse{
		Code:    http.StatusBadRequest,
		Message: err.Error(),
	})
}
