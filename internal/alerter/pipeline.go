package alerter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/netspec/alertbatch/internal/types"
	"github.com/rs/zerolog"
)

// Stage is the position of a flush cycle in the pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StageCleaning
	StageDispatching
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageCleaning:
		return "cleaning"
	case StageDispatching:
		return "dispatching"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// MarshalText renders the stage name in JSON status output.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CycleResult summarizes one flush cycle
type CycleResult struct {
	ID           string        `json:"id"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Stage        Stage         `json:"stage"`
	Snapshot     int           `json:"snapshot"`
	Recovered    int           `json:"recovered"`
	Groups       int           `json:"groups"`
	Sent         int           `json:"sent"`
	SendFailures int           `json:"send_failures"`
	Err          string        `json:"error,omitempty"`
}

// cleanupExpired removes recovered alerts from the snapshot in place and
// returns how many were removed. Emptied type sets are left in place.
func (s *Subscriber) cleanupExpired(ctx context.Context, snapshot types.AlertsByType) (int, error) {
	removed := 0
	for _, set := range snapshot {
		for key, alert := range set {
			recovered, err := s.detector.IsRecovered(ctx, alert)
			if err != nil {
				return removed, fmt.Errorf("recovery check for %s: %w", key, err)
			}
			if recovered {
				delete(set, key)
				removed++
			}
		}
	}
	alertsRecovered.Add(float64(removed))
	return removed, nil
}

// dispatch sends one message per recipient group. A failed send is logged
// and does not stop the remaining groups.
func (s *Subscriber) dispatch(ctx context.Context, log zerolog.Logger, snapshot types.AlertsByType, res *CycleResult) error {
	if snapshot.Count() == 0 {
		log.Debug().Msg("All pending alerts recovered, nothing to dispatch")
		return nil
	}

	groups, err := s.resolver.ResolveGroups(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("resolve recipient groups: %w", err)
	}

	for _, group := range groups {
		count := group.Alerts.Count()
		if count == 0 {
			continue
		}
		res.Groups++

		title, content, err := s.decorator.TitleAndContent(group.Alerts)
		if err != nil {
			return fmt.Errorf("render message for %q: %w", group.Receivers.Key(), err)
		}

		msg := types.Message{
			ID:      uuid.NewString(),
			Title:   title,
			Content: content,
			To:      group.Receivers.To,
			CC:      group.Receivers.CC,
			Alerts:  count,
		}

		if err := s.send(ctx, msg); err != nil {
			res.SendFailures++
			messagesTotal.WithLabelValues("failed").Inc()
			log.Error().
				Err(err).
				Str("message_id", msg.ID).
				Strs("to", msg.To).
				Int("alerts", count).
				Msg("Failed to send alert message")
			continue
		}

		res.Sent++
		messagesTotal.WithLabelValues("sent").Inc()
		log.Info().
			Str("message_id", msg.ID).
			Strs("to", msg.To).
			Strs("cc", msg.CC).
			Int("alerts", count).
			Msg("Alert message sent")
	}
	return nil
}

// send hands msg to the sender with its own timeout, isolating panics.
func (s *Subscriber) send(ctx context.Context, msg types.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panicked: %v", r)
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	return s.sender.Send(sendCtx, msg)
}
