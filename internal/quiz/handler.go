package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prepstack/quizgen/internal/auth"
	"github.com/prepstack/quizgen/internal/genai"
	httperrors "github.com/prepstack/quizgen/pkg/http/errors"
)

// GenerateResponse is the success envelope for /v1/generate-quiz.
type GenerateResponse struct {
	Success   bool               `json:"success"`
	QuizID    string             `json:"quizId"`
	Source    string             `json:"source"`
	Questions []QuestionResponse `json:"questions"`
}

// QuestionResponse is the client-facing question shape.
type QuestionResponse struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Difficulty   string   `json:"difficulty"`
	Explanation  string   `json:"explanation"`
}

// Handler exposes the generation service over HTTP.
type Handler struct {
	service    *Service
	logger     zerolog.Logger
	devDetails bool
}

// NewHandler builds the HTTP handler. devDetails enables diagnostic detail
// in failure bodies and must stay off in production.
func NewHandler(service *Service, logger zerolog.Logger, devDetails bool) *Handler {
	return &Handler{
		service:    service,
		logger:     logger.With().Str("component", "quiz_handler").Logger(),
		devDetails: devDetails,
	}
}

// GenerateQuiz handles POST /v1/generate-quiz. Any other method gets a 405
// with an Allow header. The auth middleware has already rejected requests
// without a valid bearer credential.
func (h *Handler) GenerateQuiz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondMethodNotAllowed(w, http.MethodPost)
		return
	}

	callerID, ok := auth.CallerID(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	var input GenerationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Request body must be valid JSON")
		return
	}

	result, err := h.service.Generate(r.Context(), callerID, input)
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := GenerateResponse{
		Success:   true,
		QuizID:    result.Quiz.ID.String(),
		Source:    result.Source,
		Questions: make([]QuestionResponse, 0, len(result.Questions)),
	}
	for _, q := range result.Questions {
		resp.Questions = append(resp.Questions, QuestionResponse{
			ID:           q.ID.String(),
			Question:     q.Text,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			Difficulty:   q.Difficulty,
			Explanation:  q.Explanation,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// respondError converts the service failure taxonomy into the uniform
// {error, message, details?} envelope.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var invalidErr *InvalidRequestError
	if errors.As(err, &invalidErr) {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, invalidErr.Error())
		return
	}

	var limitedErr *RateLimitedError
	if errors.As(err, &limitedErr) {
		httperrors.RespondRateLimited(w, limitedErr.RetryAfterSeconds, limitedErr.Message)
		return
	}

	if errors.Is(err, ErrStorageUnavailable) {
		h.logger.Error().Err(err).Msg("storage unavailable")
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeStorageUnavailable, "Storage is temporarily unavailable")
		return
	}

	var parseErr *genai.ParseError
	if errors.As(err, &parseErr) {
		h.logger.Error().
			Str("kind", parseErr.Kind).
			Int64("offset", parseErr.Offset).
			Int("brace_balance", parseErr.BraceBalance).
			Int("bracket_balance", parseErr.BracketBalance).
			Msg("model output unusable")
		code := httperrors.ErrCodeMalformedOutput
		if parseErr.Kind == genai.KindInvalidShape {
			code = httperrors.ErrCodeInvalidOutputShape
		}
		details := ""
		if h.devDetails {
			details = fmt.Sprintf("%s (offset=%d braces=%d brackets=%d)",
				parseErr.Detail, parseErr.Offset, parseErr.BraceBalance, parseErr.BracketBalance)
		}
		httperrors.RespondErrorWithDetails(w, http.StatusInternalServerError, code,
			"The generated questions could not be validated", details)
		return
	}

	var persistErr *PersistenceError
	if errors.As(err, &persistErr) {
		h.logger.Error().Err(err).Msg("quiz persistence failed")
		httperrors.RespondError(w, http.StatusInternalServerError,
			httperrors.ErrCodePersistenceFailed, "The quiz could not be saved")
		return
	}

	switch {
	case errors.Is(err, genai.ErrModelUnavailable):
		h.logger.Error().Err(err).Msg("model unavailable")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeModelUnavailable,
			"The question generator is temporarily unavailable")
	case errors.Is(err, genai.ErrModelError):
		h.logger.Error().Err(err).Msg("model call failed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeModelError,
			"The question generator returned an error")
	case errors.Is(err, genai.ErrEmptyResponse):
		h.logger.Error().Err(err).Msg("model returned no text")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeEmptyResponse,
			"The question generator returned an empty response")
	default:
		h.logger.Error().Err(err).Msg("unexpected generation failure")
		httperrors.RespondInternalError(w, "Quiz generation failed")
	}
}
