package services

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"followup-bot/internal/utils"
	"followup-bot/internal/wsnotify"

	"github.com/skip2/go-qrcode"
)

const (
	StatusInitializing  = "initializing"
	StatusQRReady       = "qr_ready"
	StatusAuthenticated = "authenticated"
	StatusReady         = "ready"
	StatusDisconnected  = "disconnected"
)

var (
	ErrAlreadyConnected = errors.New("este whatsapp já está conectado. não é necessário escanear QR code")
	ErrQRCodeNotReady   = errors.New("QR code ainda não gerado")
)

type ConnectionStatus struct {
	Status             string     `json:"status"`
	QRCodeAvailable    bool       `json:"qrCodeAvailable"`
	LastError          string     `json:"lastError,omitempty"`
	LastQRCodeAt       *time.Time `json:"lastQrCodeAt,omitempty"`
	LastConnectedAt    *time.Time `json:"lastConnectedAt,omitempty"`
	LastDisconnectedAt *time.Time `json:"lastDisconnectedAt,omitempty"`
}

// ConnectionManager tracks the pairing and connection state of the WhatsApp
// session and keeps the latest pairing QR code as a PNG data URL.
type ConnectionManager struct {
	mu                 sync.RWMutex
	status             string
	qrCodeBase64       string
	lastError          string
	lastQRCodeAt       time.Time
	lastConnectedAt    time.Time
	lastDisconnectedAt time.Time
	notifier           Notifier
	now                func() time.Time
}

func NewConnectionManager(notifier Notifier) *ConnectionManager {
	return &ConnectionManager{
		status:   StatusInitializing,
		notifier: notifierOrNop(notifier),
		now:      time.Now,
	}
}

func (cm *ConnectionManager) UpdateQRCode(qrcodeText string) error {
	qr, err := qrcode.Encode(qrcodeText, qrcode.Medium, 256)
	if err != nil {
		utils.LogError("Erro ao gerar QR code em PNG: %v", err)
		return fmt.Errorf("erro ao gerar QR code: %w", err)
	}

	cm.mu.Lock()
	cm.qrCodeBase64 = "data:image/png;base64," + base64.StdEncoding.EncodeToString(qr)
	cm.lastQRCodeAt = cm.now()
	cm.mu.Unlock()

	utils.LogInfo("QR code atualizado, aguardando leitura")
	cm.SetStatus(StatusQRReady)
	return nil
}

func (cm *ConnectionManager) SetStatus(status string) {
	cm.mu.Lock()
	changed := cm.status != status
	cm.status = status
	cm.mu.Unlock()

	if changed {
		utils.LogDebug("Status da conexão: %s", status)
		cm.notifier.Broadcast(wsnotify.Event{Type: wsnotify.EventStatus, Payload: cm.GetConnectionStatus()})
	}
}

// SetConnected marks the session ready and drops the pairing QR code.
func (cm *ConnectionManager) SetConnected() {
	cm.mu.Lock()
	cm.qrCodeBase64 = ""
	cm.lastError = ""
	cm.lastConnectedAt = cm.now()
	cm.mu.Unlock()

	cm.SetStatus(StatusReady)
}

func (cm *ConnectionManager) SetDisconnected(reason string) {
	cm.mu.Lock()
	cm.lastError = reason
	cm.lastDisconnectedAt = cm.now()
	cm.mu.Unlock()

	cm.SetStatus(StatusDisconnected)
}

func (cm *ConnectionManager) GetConnectionStatus() ConnectionStatus {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return ConnectionStatus{
		Status:             cm.status,
		QRCodeAvailable:    cm.qrCodeBase64 != "",
		LastError:          cm.lastError,
		LastQRCodeAt:       timeOrNil(cm.lastQRCodeAt),
		LastConnectedAt:    timeOrNil(cm.lastConnectedAt),
		LastDisconnectedAt: timeOrNil(cm.lastDisconnectedAt),
	}
}

func (cm *ConnectionManager) GetQRCode() (string, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.status == StatusReady {
		return "", ErrAlreadyConnected
	}
	if cm.qrCodeBase64 == "" {
		return "", ErrQRCodeNotReady
	}
	return cm.qrCodeBase64, nil
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
