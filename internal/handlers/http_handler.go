package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"followup-bot/internal/models"
	"followup-bot/internal/services"
	"followup-bot/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	contacts          *services.ContactService
	connectionManager *services.ConnectionManager
	validate          *validator.Validate
}

func NewHTTPHandler(contacts *services.ContactService, manager *services.ConnectionManager) *HTTPHandler {
	return &HTTPHandler{
		contacts:          contacts,
		connectionManager: manager,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
	}
}

// decode reads a JSON body into dst and runs struct validation on it.
func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, route string, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.LogError("Erro ao decodificar requisição %s: %v", route, err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse(models.CodeInvalidInput, "Erro ao decodificar requisição: "+err.Error()))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		utils.LogWarning("Requisição inválida em %s: %v", route, err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse(models.CodeInvalidInput, validationMessage(err)))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Dados inválidos: " + err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return "Campos inválidos: " + strings.Join(fields, ", ")
}

// respondServiceError maps service and store errors onto HTTP status codes.
func respondServiceError(w http.ResponseWriter, route string, err error) {
	status, code := http.StatusInternalServerError, models.CodeInternal
	switch {
	case errors.Is(err, models.ErrContactNotFound):
		status, code = http.StatusNotFound, models.CodeNotFound
	case errors.Is(err, models.ErrContactExists), errors.Is(err, models.ErrRevisionConflict):
		status, code = http.StatusConflict, models.CodeConflict
	case errors.Is(err, services.ErrInvalidInput):
		status, code = http.StatusBadRequest, models.CodeInvalidInput
	case errors.Is(err, services.ErrChannelUnavailable):
		status, code = http.StatusServiceUnavailable, models.CodeChannelUnavailable
	}
	if status == http.StatusInternalServerError {
		utils.LogError("Erro em %s: %v", route, err)
	} else {
		utils.LogWarning("Falha em %s: %v", route, err)
	}
	models.RespondWithJSON(w, status, models.NewErrorResponse(code, err.Error()))
}

// @Summary Check Connection Status
// @Description Check the WhatsApp session status
// @Tags authentication
// @Produce json
// @Success 200 {object} models.APIResponse "Status da conexão"
// @Router /status [get]
func (h *HTTPHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.connectionManager.GetConnectionStatus()
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Status obtido com sucesso", status))
}

// @Summary Get QR Code Base64
// @Description Get the pairing QR code as a base64 PNG data URL
// @Tags authentication
// @Produce json
// @Success 200 {object} models.APIResponse "QR code em base64 e status"
// @Success 202 {object} models.APIResponse "QR code ainda não gerado"
// @Router /qrcode-base64 [get]
func (h *HTTPHandler) GetQRCodeBase64(w http.ResponseWriter, r *http.Request) {
	qrCode, err := h.connectionManager.GetQRCode()
	switch {
	case errors.Is(err, services.ErrAlreadyConnected):
		models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("WhatsApp já conectado", map[string]interface{}{
			"status": h.connectionManager.GetConnectionStatus().Status,
		}))
	case errors.Is(err, services.ErrQRCodeNotReady):
		models.RespondWithJSON(w, http.StatusAccepted, models.NewWaitingResponse("Aguardando geração do QR code"))
	case err != nil:
		utils.LogError("Erro ao obter QR code: %v", err)
		models.RespondWithJSON(w, http.StatusInternalServerError, models.NewErrorResponse(models.CodeInternal, err.Error()))
	default:
		models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("QR code gerado com sucesso", map[string]interface{}{
			"qrcode": qrCode,
			"status": h.connectionManager.GetConnectionStatus().Status,
		}))
	}
}

// @Summary Get settings
// @Tags settings
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /settings [get]
func (h *HTTPHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.contacts.GetSettings(r.Context())
	if err != nil {
		respondServiceError(w, "/settings", err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Configurações obtidas", models.NewSettingsView(settings)))
}

// @Summary Save settings
// @Description Replace the settings. An empty apiKey keeps the stored key unless clearApiKey is set.
// @Tags settings
// @Accept json
// @Produce json
// @Param request body models.SettingsRequest true "Settings"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /settings [post]
func (h *HTTPHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var req models.SettingsRequest
	if !h.decode(w, r, "/settings", &req) {
		return
	}
	settings, err := h.contacts.SaveSettings(r.Context(), req)
	if err != nil {
		respondServiceError(w, "/settings", err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Configurações salvas", models.NewSettingsView(settings)))
}

// @Summary Toggle server automation
// @Tags settings
// @Accept json
// @Produce json
// @Param request body models.AutopilotRequest true "Enabled flag"
// @Success 200 {object} models.APIResponse
// @Router /autopilot [post]
func (h *HTTPHandler) SetGlobalAutomation(w http.ResponseWriter, r *http.Request) {
	var req models.AutopilotRequest
	if !h.decode(w, r, "/autopilot", &req) {
		return
	}
	settings, err := h.contacts.SetGlobalAutomation(r.Context(), *req.Enabled)
	if err != nil {
		respondServiceError(w, "/autopilot", err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Automação atualizada", models.NewSettingsView(settings)))
}

// @Summary List contacts
// @Tags contacts
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /contacts [get]
func (h *HTTPHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.contacts.List(r.Context())
	if err != nil {
		respondServiceError(w, "/contacts", err)
		return
	}
	if contacts == nil {
		contacts = []*models.Contact{}
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Contatos listados", contacts))
}

// @Summary Create contact
// @Tags contacts
// @Accept json
// @Produce json
// @Param request body models.CreateContactRequest true "Contact"
// @Success 201 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /contacts [post]
func (h *HTTPHandler) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req models.CreateContactRequest
	if !h.decode(w, r, "/contacts", &req) {
		return
	}
	contact, err := h.contacts.Create(r.Context(), req)
	if err != nil {
		respondServiceError(w, "/contacts", err)
		return
	}
	models.RespondWithJSON(w, http.StatusCreated, models.NewSuccessResponse("Contato criado", contact))
}

// @Summary Get contact
// @Tags contacts
// @Produce json
// @Param id path string true "Contact ID"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /contacts/{id} [get]
func (h *HTTPHandler) GetContact(w http.ResponseWriter, r *http.Request) {
	contact, err := h.contacts.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, "/contacts/{id}", err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Contato encontrado", contact))
}

// @Summary Update contact
// @Description Update editable fields. Omitted fields stay unchanged.
// @Tags contacts
// @Accept json
// @Produce json
// @Param id path string true "Contact ID"
// @Param request body models.UpdateContactRequest true "Fields to change"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /contacts/{id} [put]
func (h *HTTPHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateContactRequest
	if !h.decode(w, r, "/contacts/{id}", &req) {
		return
	}
	contact, err := h.contacts.Update(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		respondServiceError(w, "/contacts/{id}", err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Contato atualizado", contact))
}

// @Summary Delete contact
// @Tags contacts
// @Produce json
// @Param id path string true "Contact ID"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /contacts/{id} [delete]
func (h *HTTPHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.contacts.Delete(r.Context(), id); err != nil {
		respondServiceError(w, "/contacts/{id}", err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Contato removido", map[string]string{"id": id}))
}

// @Summary Send a text message
// @Description Send a message to the contact right away. The automation stage is not changed.
// @Tags messages
// @Accept json
// @Produce json
// @Param id path string true "Contact ID"
// @Param request body models.MessageRequest true "Message"
// @Success 200 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse "WhatsApp desconectado"
// @Router /contacts/{id}/send [post]
func (h *HTTPHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req models.MessageRequest
	if !h.decode(w, r, "/contacts/{id}/send", &req) {
		return
	}
	contact, err := h.contacts.TriggerManualSend(r.Context(), mux.Vars(r)["id"], req.Message)
	if err != nil {
		respondServiceError(w, "/contacts/{id}/send", err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Mensagem enviada com sucesso", contact))
}

// @Summary Acknowledge reply
// @Description Mark the contact's last reply as read
// @Tags contacts
// @Produce json
// @Param id path string true "Contact ID"
// @Success 200 {object} models.APIResponse
// @Router /contacts/{id}/ack [post]
func (h *HTTPHandler) AcknowledgeReply(w http.ResponseWriter, r *http.Request) {
	contact, err := h.contacts.AcknowledgeReply(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, "/contacts/{id}/ack", err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Resposta marcada como lida", contact))
}

// @Summary Toggle contact autopilot
// @Tags contacts
// @Accept json
// @Produce json
// @Param id path string true "Contact ID"
// @Param request body models.AutopilotRequest true "Enabled flag"
// @Success 200 {object} models.APIResponse
// @Router /contacts/{id}/autopilot [post]
func (h *HTTPHandler) SetContactAutopilot(w http.ResponseWriter, r *http.Request) {
	var req models.AutopilotRequest
	if !h.decode(w, r, "/contacts/{id}/autopilot", &req) {
		return
	}
	contact, err := h.contacts.SetAutopilot(r.Context(), mux.Vars(r)["id"], *req.Enabled)
	if err != nil {
		respondServiceError(w, "/contacts/{id}/autopilot", err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("Piloto automático atualizado", contact))
}
