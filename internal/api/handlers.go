/**
 * @description
 * This file contains the HTTP handlers for the rewards-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http, net/url: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameters.
 * - internal/app, internal/domain: Service logic and models.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/loyalty/rewards-service/internal/app"
	"github.com/loyalty/rewards-service/internal/domain"
)

// RewardHandlers holds the application service that handlers will use.
type RewardHandlers struct {
	service *app.Service
}

// NewRewardHandlers creates a new instance of RewardHandlers.
func NewRewardHandlers(service *app.Service) *RewardHandlers {
	return &RewardHandlers{service: service}
}

type messageResponse struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

type redeemResponse struct {
	Message       string               `json:"message"`
	CampaignProps domain.CampaignProps `json:"campaign_props"`
}

type campaignActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

// ScanHandler redeems a scanned code and redirects the browser to the result page.
func (h *RewardHandlers) ScanHandler(w http.ResponseWriter, r *http.Request) {
	codeID := chi.URLParam(r, "codeId")
	caller, ok := GetIdentity(r.Context())
	if !ok {
		http.Redirect(w, r, "/sign-in?redirect="+url.QueryEscape(r.URL.Path), http.StatusFound)
		return
	}

	result, err := h.service.Scan(r.Context(), caller, domain.ScanRequest{
		CompanyID:  chi.URLParam(r, "companyId"),
		CampaignID: chi.URLParam(r, "campaignId"),
		CodeID:     codeID,
	})
	switch {
	case err == nil:
		http.Redirect(w, r, scannedLocation(http.StatusOK, result.Message), http.StatusFound)
	case errors.Is(err, domain.ErrScannedOwnCode):
		http.Redirect(w, r, "/code/"+url.PathEscape(codeID), http.StatusFound)
	case errors.Is(err, domain.ErrUnauthenticated):
		http.Redirect(w, r, "/sign-in?redirect="+url.QueryEscape(r.URL.Path), http.StatusFound)
	default:
		http.Redirect(w, r, scannedLocation(statusFor(err), domain.UserMessage(err)), http.StatusFound)
	}
}

func scannedLocation(status int, message string) string {
	q := url.Values{}
	q.Set("code", fmt.Sprint(status))
	q.Set("message", message)
	return "/code/scanned?" + q.Encode()
}

// DrawHandler draws giveaway winners.
func (h *RewardHandlers) DrawHandler(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetIdentity(r.Context())
	var req domain.DrawRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.service.DrawWinners(r.Context(), caller, req)
	if err != nil {
		writeServiceError(w, "giveaway_draw", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RedeemHandler redeems a participant's reward.
func (h *RewardHandlers) RedeemHandler(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetIdentity(r.Context())
	var req domain.RedeemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	props, err := h.service.Redeem(r.Context(), caller, req)
	if err != nil {
		writeServiceError(w, "redeem", err)
		return
	}
	writeJSON(w, http.StatusOK, redeemResponse{Message: "Reward redeemed.", CampaignProps: props})
}

// CreateCampaignHandler creates a campaign for the caller's company.
func (h *RewardHandlers) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetIdentity(r.Context())
	var req domain.CreateCampaignRequest
	if !decodeBody(w, r, &req) {
		return
	}
	campaign, err := h.service.CreateCampaign(r.Context(), caller, req)
	if err != nil {
		writeServiceError(w, "create_campaign", err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

// ListCampaignTypesHandler lists the available campaign types.
func (h *RewardHandlers) ListCampaignTypesHandler(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ListCampaignTypes(r.Context())
	if err != nil {
		writeServiceError(w, "list_campaign_types", err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

// GetCampaignHandler returns a campaign with its statistics.
func (h *RewardHandlers) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetIdentity(r.Context())
	details, err := h.service.GetCampaign(r.Context(), caller, chi.URLParam(r, "campaignId"))
	if err != nil {
		writeServiceError(w, "get_campaign", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// UpdateCampaignHandler changes whether a campaign is active.
func (h *RewardHandlers) UpdateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetIdentity(r.Context())
	var req campaignActiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		writeError(w, http.StatusBadRequest, domain.UserMessage(domain.ErrInvalidInput))
		return
	}
	campaign, err := h.service.SetCampaignActive(r.Context(), caller, chi.URLParam(r, "campaignId"), *req.IsActive)
	if err != nil {
		writeServiceError(w, "update_campaign", err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// GenerateCodesHandler adds codes to a campaign.
func (h *RewardHandlers) GenerateCodesHandler(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetIdentity(r.Context())
	var req domain.GenerateCodesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.service.GenerateCodes(r.Context(), caller, req)
	if err != nil {
		writeServiceError(w, "generate_codes", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GetCodeHandler returns a single code.
func (h *RewardHandlers) GetCodeHandler(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetIdentity(r.Context())
	code, err := h.service.GetCode(r.Context(), caller, chi.URLParam(r, "codeId"))
	if err != nil {
		writeServiceError(w, "get_code", err)
		return
	}
	writeJSON(w, http.StatusOK, code)
}

// CampaignParticipationHandler lists a participant's rewards in the caller's campaigns.
func (h *RewardHandlers) CampaignParticipationHandler(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetIdentity(r.Context())
	participation, err := h.service.GetCampaignParticipation(r.Context(), caller, chi.URLParam(r, "accountId"))
	if err != nil {
		writeServiceError(w, "campaign_participation", err)
		return
	}
	writeJSON(w, http.StatusOK, participation)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, domain.UserMessage(domain.ErrInvalidInput))
		return false
	}
	return true
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentifier),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsRetryable(err):
		return http.StatusConflict
	case domain.Known(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("level=error component=api endpoint=%s msg=\"request failed\" err=%v", endpoint, err)
	}
	writeJSON(w, status, messageResponse{Message: domain.UserMessage(err), Retryable: domain.IsRetryable(err)})
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}
