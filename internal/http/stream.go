package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/owera/internal/events"
	"github.com/fyrsmithlabs/owera/internal/services"
)

// handleEvents streams a run's events as server-sent events. The stream
// ends after run.finished.
func (s *Server) handleEvents(c echo.Context) error {
	id := c.Param("id")
	done, err := s.runs.Done(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if s.subscriber == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event streaming is disabled")
	}

	ch := make(chan *nats.Msg, 64)
	sub, err := s.subscriber.Subscribe(id, ch)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer func() { _ = sub.Unsubscribe() }()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ctx := c.Request().Context()
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case msg := <-ch:
			if finished, err := s.forward(w, msg); finished || err != nil {
				return nil
			}
		case <-done:
			// Drain what arrived, then synthesize run.finished if it was
			// published before the subscription existed.
			for {
				select {
				case msg := <-ch:
					if finished, err := s.forward(w, msg); finished || err != nil {
						return nil
					}
				default:
					info, _ := s.runs.Get(id)
					_ = writeEvent(w, finishedEvent(info))
					return nil
				}
			}
		}
	}
}

// forward writes one NATS message as an event and reports whether it
// ended the run.
func (s *Server) forward(w *echo.Response, msg *nats.Msg) (bool, error) {
	e, err := events.Decode(msg)
	if err != nil {
		s.logger.Warn(context.Background(), "dropping undecodable event", zap.Error(err))
		return false, nil
	}
	if err := writeEvent(w, e); err != nil {
		return false, err
	}
	return e.Type == events.RunFinished, nil
}

func finishedEvent(info services.RunInfo) events.Event {
	e := events.Event{
		Type:    events.RunFinished,
		RunID:   info.ID,
		Cycle:   info.Cycle,
		Outcome: string(info.Outcome),
		Message: info.Error,
		Time:    time.Now().UTC(),
	}
	if info.FinishedAt != nil {
		e.Time = *info.FinishedAt
	}
	return e
}

func writeEvent(w *echo.Response, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
		return err
	}
	w.Flush()
	return nil
}
