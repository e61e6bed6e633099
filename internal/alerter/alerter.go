package alerter

import (
	"encoding/json"
	"fmt"
	"log"

	"FlowSentry/internal/event"
	"FlowSentry/internal/model"
)

// Alerter consumes scoring events from the event bus and forwards them to a
// notifier as formatted alert emails.
type Alerter struct {
	sub      *event.Subscriber
	notifier model.Notifier
}

// NewAlerter creates an Alerter on top of an existing subscriber.
func NewAlerter(sub *event.Subscriber, notifier model.Notifier) *Alerter {
	return &Alerter{sub: sub, notifier: notifier}
}

// Start subscribes to the scoring event subjects.
func (a *Alerter) Start() error {
	if err := a.sub.Subscribe(event.SubjectModelRetrained, a.handleRetrained); err != nil {
		return err
	}
	if err := a.sub.Subscribe(event.SubjectHighAnomalyRate, a.handleHighAnomalyRate); err != nil {
		return err
	}
	log.Println("Alerter started")
	return nil
}

// Stop closes the underlying subscriptions.
func (a *Alerter) Stop() {
	log.Println("Stopping Alerter...")
	a.sub.Close()
}

func (a *Alerter) handleRetrained(subject string, data []byte) {
	var ev event.ModelRetrained
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Printf("Failed to decode %s event: %v", subject, err)
		return
	}

	source := "stored traffic records"
	if ev.Synthetic {
		source = "synthetic bootstrap data"
	}
	body := "<h1>FlowSentry Model Retrained</h1>" +
		fmt.Sprintf("<p>Version <b>%s</b> trained at %s on %d samples (%s).</p>",
			ev.Version, ev.TrainedAt.Format("2006-01-02 15:04:05 MST"), ev.SampleCount, source) +
		fmt.Sprintf("<p>Contamination: %.2f, anomalies in training set: %d.</p>",
			ev.Contamination, ev.AnomalyCount)

	a.send(fmt.Sprintf("FlowSentry: model retrained (%s)", ev.Version), body)
}

func (a *Alerter) handleHighAnomalyRate(subject string, data []byte) {
	var ev event.HighAnomalyRate
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Printf("Failed to decode %s event: %v", subject, err)
		return
	}

	body := "<h1>FlowSentry High Anomaly Rate</h1>" +
		fmt.Sprintf("<p>Batch run at %s classified <b>%d of %d</b> records as anomalous (%.1f%%), above the %.0f%% alert threshold.</p>",
			ev.RunAt.Format("2006-01-02 15:04:05 MST"), ev.Anomalies, ev.Processed, ev.Rate*100, ev.Threshold*100) +
		fmt.Sprintf("<p>Model version: %s.</p>", ev.ModelVersion)

	a.send(fmt.Sprintf("FlowSentry ALERT: %.1f%% anomalous traffic", ev.Rate*100), body)
}

func (a *Alerter) send(subject, body string) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Send(subject, body); err != nil {
		log.Printf("ERROR: Failed to send alert notification: %v", err)
	} else {
		log.Printf("INFO: Alert notification sent: %s", subject)
	}
}
