package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andresmejia3/facegate/internal/config"
	"github.com/andresmejia3/facegate/internal/types"
	"github.com/go-resty/resty/v2"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// Actuator is the outbound control channel to the lock hardware.
type Actuator interface {
	Send(ctx context.Context, ev types.SignalEvent) error
	Close() error
}

// OpenActuator builds the actuator described by cfg. If it cannot be opened the
// pipeline still runs: a warning is logged and signals are only simulated.
func OpenActuator(cfg config.ActuatorConfig, log *zap.Logger) Actuator {
	switch cfg.Kind {
	case config.ActuatorSerial:
		a, err := OpenSerial(cfg.Port, cfg.Baud, cfg.Settle)
		if err != nil {
			log.Warn("⚠️  Actuator unavailable, signals will be simulated", zap.String("port", cfg.Port), zap.Error(err))
			return NewSimulated(log)
		}
		log.Info("🔌 Serial actuator connected", zap.String("port", cfg.Port), zap.Int("baud", cfg.Baud))
		return a
	case config.ActuatorWebhook:
		log.Info("🌐 Webhook actuator configured", zap.String("url", cfg.URL))
		return NewWebhook(cfg.URL, cfg.Timeout)
	default:
		return NewSimulated(log)
	}
}

// SerialActuator writes the raw ASCII command to a microcontroller on a serial
// port. There is no framing and no acknowledgement.
type SerialActuator struct {
	mu   sync.Mutex
	port serial.Port
}

// OpenSerial opens the port and waits settle for the board to finish resetting.
func OpenSerial(port string, baud int, settle time.Duration) (*SerialActuator, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	if settle > 0 {
		time.Sleep(settle)
	}
	return &SerialActuator{port: p}, nil
}

func (s *SerialActuator) Send(ctx context.Context, ev types.SignalEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.port.Write([]byte(ev.Command)); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

func (s *SerialActuator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}

// WebhookActuator POSTs the command to an HTTP relay controller.
type WebhookActuator struct {
	url    string
	client *resty.Client
}

type webhookPayload struct {
	Command string `json:"command"`
	Box     [4]int `json:"box"`
	Session string `json:"session"`
}

func NewWebhook(url string, timeout time.Duration) *WebhookActuator {
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &WebhookActuator{url: url, client: client}
}

func (w *WebhookActuator) Send(ctx context.Context, ev types.SignalEvent) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookPayload{
			Command: ev.Command,
			Box:     [4]int{ev.Box.X, ev.Box.Y, ev.Box.W, ev.Box.H},
			Session: ev.Session,
		}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned %s", resp.Status())
	}
	return nil
}

func (w *WebhookActuator) Close() error {
	return nil
}

// Simulated stands in for missing hardware and only logs.
type Simulated struct {
	log *zap.Logger
}

func NewSimulated(log *zap.Logger) *Simulated {
	return &Simulated{log: log}
}

func (s *Simulated) Send(ctx context.Context, ev types.SignalEvent) error {
	s.log.Info("🔓 Simulated signal", zap.String("command", ev.Command), zap.Stringer("box", ev.Box))
	return nil
}

func (s *Simulated) Close() error {
	return nil
}
