package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"followup-bot/config"
	"followup-bot/internal/models"
	"followup-bot/internal/utils"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"
)

const reinitializeDelay = 5 * time.Second

// MessageIngestor receives the text messages seen on the channel.
type MessageIngestor interface {
	Ingest(ctx context.Context, evt models.ChannelEvent) (IngestResult, error)
}

// WhatsAppService is the Channel backed by a whatsmeow session. The session is
// kept in a local SQLite file so a restart does not require pairing again.
type WhatsAppService struct {
	config    *config.Config
	manager   *ConnectionManager
	ingestor  MessageIngestor
	container *sqlstore.Container

	mu        sync.RWMutex
	client    *whatsmeow.Client
	connected bool
	ctx       context.Context
}

func NewWhatsAppService(cfg *config.Config, manager *ConnectionManager, ingestor MessageIngestor) *WhatsAppService {
	return &WhatsAppService{
		config:   cfg,
		manager:  manager,
		ingestor: ingestor,
		ctx:      context.Background(),
	}
}

func (s *WhatsAppService) openStore() (*sqlstore.Container, error) {
	if s.container != nil {
		return s.container, nil
	}

	dbPath := s.config.WhatsAppDBPath
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("erro ao criar diretório para banco de dados: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)", dbPath)
	dbLog := waLog.Zerolog(utils.Logger().With().Str("module", "whatsmeow-db").Logger())
	container, err := sqlstore.New("sqlite", dsn, dbLog)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar device store: %w", err)
	}
	s.container = container
	return container, nil
}

// Connect opens the stored session, or starts pairing and publishes QR codes
// through the ConnectionManager when there is none.
func (s *WhatsAppService) Connect(ctx context.Context) error {
	store.DeviceProps.Os = proto.String(s.config.DevicePlatform)
	store.DeviceProps.PlatformType = waProto.DeviceProps_DESKTOP.Enum()

	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.manager.SetStatus(StatusInitializing)
	utils.LogInfo("Conectando ao WhatsApp")

	container, err := s.openStore()
	if err != nil {
		return err
	}

	device, err := container.GetFirstDevice()
	if err != nil {
		return fmt.Errorf("erro ao carregar dispositivo: %w", err)
	}

	clientLog := waLog.Zerolog(utils.Logger().With().Str("module", "whatsmeow").Logger())
	client := whatsmeow.NewClient(device, clientLog)
	client.AddEventHandler(s.eventHandler)

	s.mu.Lock()
	s.client = client
	s.connected = false
	s.mu.Unlock()

	if client.Store.ID == nil {
		qrChan, err := client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("erro ao obter canal de QR code: %w", err)
		}
		go s.watchQRChannel(qrChan)
	}

	if err := client.Connect(); err != nil {
		utils.LogError("Erro ao conectar: %v", err)
		return fmt.Errorf("erro ao conectar: %w", err)
	}
	return nil
}

func (s *WhatsAppService) watchQRChannel(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			utils.LogInfo("QR code recebido")
			if err := s.manager.UpdateQRCode(evt.Code); err != nil {
				utils.LogError("Erro ao salvar QR code: %v", err)
			}
		case "success":
			s.manager.SetStatus(StatusAuthenticated)
		case "timeout":
			utils.LogWarning("QR code expirou sem leitura")
			s.manager.SetDisconnected("QR code expirado")
			s.scheduleReinitialize()
		default:
			utils.LogWarning("Evento de pareamento: %s", evt.Event)
		}
	}
}

func (s *WhatsAppService) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.client == nil {
		return false
	}
	return s.client.IsConnected() && s.client.IsLoggedIn() && s.connected
}

func (s *WhatsAppService) setConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.mu.Unlock()
}

func (s *WhatsAppService) currentClient() *whatsmeow.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Resolve asks WhatsApp for the account behind phone. Any failure falls back
// to the JID built from the digits.
func (s *WhatsAppService) Resolve(ctx context.Context, phone string) string {
	jid, err := utils.ParseJID(phone)
	if err != nil {
		return utils.DigitsOnly(phone) + "@" + types.DefaultUserServer
	}

	client := s.currentClient()
	if client == nil {
		return jid.String()
	}

	resp, err := client.IsOnWhatsApp([]string{"+" + jid.User})
	if err != nil {
		utils.LogDebug("Falha ao verificar %s no WhatsApp: %v", phone, err)
		return jid.String()
	}
	for _, r := range resp {
		if r.IsIn {
			return r.JID.String()
		}
	}
	return jid.String()
}

func (s *WhatsAppService) Send(ctx context.Context, to string, text string) (string, error) {
	client := s.currentClient()
	if client == nil {
		return "", ErrChannelUnavailable
	}

	jid, err := types.ParseJID(to)
	if err != nil {
		return "", fmt.Errorf("destino inválido %s: %w", to, err)
	}

	msg := &waProto.Message{Conversation: proto.String(text)}
	resp, err := client.SendMessage(ctx, jid, msg)
	if err != nil {
		utils.LogWarning("Erro na primeira tentativa de envio para %s: %v", to, err)
		if ctx.Err() != nil {
			return "", err
		}

		resp, err = client.SendMessage(ctx, jid, msg)
		if err != nil {
			if strings.Contains(err.Error(), "server returned error 479") {
				return "", fmt.Errorf("erro de conexão com WhatsApp (479), por favor tente novamente em alguns instantes")
			}
			return "", fmt.Errorf("erro persistente ao enviar mensagem: %w", err)
		}
	}

	utils.LogInfo("Mensagem enviada com sucesso para %s", to)
	return resp.ID, nil
}

func (s *WhatsAppService) eventHandler(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		s.handleMessage(v)
	case *events.PairSuccess:
		utils.LogInfo("WhatsApp pareado: %s", v.ID.String())
		s.manager.SetStatus(StatusAuthenticated)
	case *events.Connected:
		utils.LogInfo("WhatsApp conectado")
		s.setConnected(true)
		s.manager.SetConnected()
	case *events.Disconnected:
		utils.LogWarning("WhatsApp desconectado")
		s.setConnected(false)
		s.manager.SetDisconnected("conexão perdida")
	case *events.StreamReplaced:
		utils.LogWarning("Sessão aberta em outro lugar")
		s.setConnected(false)
		s.manager.SetDisconnected("sessão substituída")
	case *events.LoggedOut:
		utils.LogWarning("WhatsApp deslogado, novo pareamento em %s", reinitializeDelay)
		s.setConnected(false)
		s.manager.SetDisconnected("sessão encerrada")
		s.scheduleReinitialize()
	}
}

// scheduleReinitialize drops the current session and starts pairing again.
func (s *WhatsAppService) scheduleReinitialize() {
	time.AfterFunc(reinitializeDelay, func() {
		s.mu.Lock()
		client := s.client
		ctx := s.ctx
		s.client = nil
		s.connected = false
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if client != nil {
			client.Disconnect()
			if client.Store.ID != nil {
				if err := client.Store.Delete(); err != nil {
					utils.LogError("Erro ao remover sessão antiga: %v", err)
				}
			}
		}
		if err := s.Connect(ctx); err != nil {
			utils.LogError("Erro ao reinicializar WhatsApp: %v", err)
		}
	})
}

func (s *WhatsAppService) handleMessage(msg *events.Message) {
	evt, ok := toChannelEvent(msg)
	if !ok {
		return
	}

	utils.LogDebug("Mensagem %s (%s) de %s", msg.Info.ID, evt.Direction, evt.Phone)
	if s.ingestor == nil {
		return
	}

	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	result, err := s.ingestor.Ingest(ctx, evt)
	if err != nil {
		utils.LogError("Erro ao registrar mensagem %s: %v", msg.Info.ID, err)
		return
	}
	utils.LogDebug("Mensagem %s: %s", msg.Info.ID, result.Outcome)
}

// toChannelEvent keeps direct text chats addressed by phone number. Groups,
// status updates, broadcast lists and hidden-id (@lid) chats are dropped.
func toChannelEvent(msg *events.Message) (models.ChannelEvent, bool) {
	if msg.Info.IsGroup ||
		msg.Info.Chat.Server == types.GroupServer ||
		msg.Info.Chat.Server == types.BroadcastServer {
		return models.ChannelEvent{}, false
	}

	body := msg.Message.GetConversation()
	if body == "" {
		body = msg.Message.GetExtendedTextMessage().GetText()
	}
	if strings.TrimSpace(body) == "" {
		return models.ChannelEvent{}, false
	}

	// Matching needs the phone number, which only phone-addressed chats carry.
	if msg.Info.Chat.Server != types.DefaultUserServer {
		utils.LogWarning("Mensagem %s de chat sem telefone (%s), descartada", msg.Info.ID, msg.Info.Chat.String())
		return models.ChannelEvent{}, false
	}

	direction := models.DirectionInbound
	if msg.Info.IsFromMe {
		direction = models.DirectionOutbound
	}

	return models.ChannelEvent{
		Direction: direction,
		Phone:     msg.Info.Chat.User,
		Body:      body,
		MessageID: msg.Info.ID,
		Timestamp: msg.Info.Timestamp,
	}, true
}

// Disconnect closes the socket. The stored session is kept.
func (s *WhatsAppService) Disconnect() {
	if client := s.currentClient(); client != nil {
		client.Disconnect()
	}
	s.setConnected(false)
}
