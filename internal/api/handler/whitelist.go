package handler

import (
	"net/http"

	"go.uber.org/zap"
)

// HandleWhitelist lists the whitelisted hashes as canonical hex strings
func (h *Handler) HandleWhitelist(w http.ResponseWriter, r *http.Request) {
	hashes, err := h.Whitelist.List(r.Context())
	if err != nil {
		h.Logger.Error("failed to list whitelist", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list whitelist", err.Error())
		return
	}

	out := make([]string, len(hashes))
	for i, hash := range hashes {
		out[i] = hash.Hex()
	}
	h.writeJSON(w, http.StatusOK, out)
}

// ConversionRequestView is the JSON shape of a conversion request.
type ConversionRequestView struct {
	RequestID          string `json:"requestId"`
	RequestType        string `json:"requestType"`
	Status             string `json:"status"`
	Processed          bool   `json:"processed"`
	Amount             uint64 `json:"amount"`
	BlockHeight        uint64 `json:"blockHeight"`
	DestinationAddress string `json:"destinationAddress"`
	DestinationChain   string `json:"destinationChain"`
}

// HandleConversionRequests lists conversion requests in creation order
func (h *Handler) HandleConversionRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Conversions.List(r.Context())
	if err != nil {
		h.Logger.Error("failed to list conversion requests", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list conversion requests", err.Error())
		return
	}

	views := make([]ConversionRequestView, len(requests))
	for i, req := range requests {
		views[i] = ConversionRequestView{
			RequestID:          req.RequestID.Hex(),
			RequestType:        req.RequestType.String(),
			Status:             req.Status.String(),
			Processed:          req.Processed,
			Amount:             req.Amount,
			BlockHeight:        req.BlockHeight,
			DestinationAddress: req.DestinationAddress,
			DestinationChain:   req.DestinationChain,
		}
	}
	h.writeJSON(w, http.StatusOK, views)
}
