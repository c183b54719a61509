package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

// FCMNotifier posts frames to an FCM HTTPv1 endpoint so the provider app
// still hears about new visible emergencies when no session is open.
type FCMNotifier struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func NewFCMNotifier(endpoint, key string) *FCMNotifier {
	return &FCMNotifier{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (f *FCMNotifier) Notify(fr Frame) error {
	body := map[string]interface{}{"message": map[string]interface{}{"data": map[string]interface{}{"kind": fr.Kind, "emergency_id": fr.ID}}}
	b, _ := json.Marshal(body)
	req, err := http.NewRequest("POST", f.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Key != "" {
		req.Header.Set("Authorization", "Bearer "+f.Key)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Fanout sends each frame to every notifier, ignoring individual
// failures. WS first, push fallback second matches how the provider app
// consumes them.
type Fanout []Notifier

func (f Fanout) Notify(fr Frame) error {
	for _, n := range f {
		_ = n.Notify(fr)
	}
	return nil
}
