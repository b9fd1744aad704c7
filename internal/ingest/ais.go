// Package ingest streams live AIS position reports over WebSocket and
// converts them into track points for the prediction pipeline.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"darkwatch/internal/predict"
)

// metaTimeLayout is the timestamp format used by aisstream.io metadata.
const metaTimeLayout = "2006-01-02 15:04:05.999999999 -0700 MST"

const (
	// sogUnavailable is the AIS sentinel for "speed not available".
	sogUnavailable = 102.3
	// cogUnavailable is the AIS sentinel for "course not available".
	cogUnavailable = 360.0
)

// PositionReport is a single decoded AIS position report.
type PositionReport struct {
	VesselID string
	Point    predict.TrackPoint
}

// Stream consumes the aisstream.io WebSocket feed.
type Stream struct {
	url         string
	apiKey      string
	boundingBox [][2]float64
}

// NewStream returns a stream for the given feed URL and API key. The
// bounding box is a pair of [lat, lon] corners limiting the coverage
// area.
func NewStream(url, apiKey string, boundingBox [][2]float64) *Stream {
	return &Stream{url: url, apiKey: apiKey, boundingBox: boundingBox}
}

// subscribeMessage is the aisstream.io subscription payload.
type subscribeMessage struct {
	APIKey             string         `json:"APIKey"`
	BoundingBoxes      [][][2]float64 `json:"BoundingBoxes"`
	FilterMessageTypes []string       `json:"FilterMessageTypes"`
}

// envelope is the wire frame for incoming feed messages.
type envelope struct {
	MessageType string `json:"MessageType"`
	Message     struct {
		PositionReport struct {
			UserID    int     `json:"UserID"`
			Latitude  float64 `json:"Latitude"`
			Longitude float64 `json:"Longitude"`
			Sog       float64 `json:"Sog"`
			Cog       float64 `json:"Cog"`
		} `json:"PositionReport"`
	} `json:"Message"`
	MetaData struct {
		MMSI    int    `json:"MMSI"`
		TimeUTC string `json:"time_utc"`
	} `json:"MetaData"`
}

// Run streams position reports until the context is cancelled,
// reconnecting with exponential backoff on failure.
func (s *Stream) Run(ctx context.Context, reports chan<- PositionReport, errors chan<- error, ping time.Duration) error {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.streamOnce(ctx, reports, errors, ping); err != nil {
				log.Warn().Err(err).Dur("backoff", backoff).Msg("AIS stream failed, reconnecting with exponential backoff...")
				select {
				case errors <- fmt.Errorf("ais reconnect: %w", err):
				default:
				}

				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return ctx.Err()
				}

				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}
			// Reset backoff on successful connection
			backoff = time.Second
		}
	}
}

func (s *Stream) streamOnce(ctx context.Context, reports chan<- PositionReport, errors chan<- error, ping time.Duration) error {
	log.Info().Str("url", s.url).Msg("Establishing AIS stream connection")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer func() {
		conn.Close()
		log.Debug().Msg("AIS stream connection closed")
	}()

	conn.SetReadLimit(512 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

	conn.SetCloseHandler(func(code int, text string) error {
		log.Warn().Int("code", code).Str("text", text).Msg("AIS stream closed by server")
		return fmt.Errorf("connection closed: %d %s", code, text)
	})

	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	sub := subscribeMessage{
		APIKey:             s.apiKey,
		BoundingBoxes:      [][][2]float64{s.boundingBox},
		FilterMessageTypes: []string{"PositionReport"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}
	log.Info().Int("bounding_box_corners", len(s.boundingBox)).Msg("Subscribed to AIS position reports")

	pingTicker := time.NewTicker(ping)
	defer pingTicker.Stop()

	lastDataReceived := time.Now()
	healthCheckTicker := time.NewTicker(30 * time.Second)
	defer healthCheckTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				select {
				case errors <- fmt.Errorf("ping failed: %w", err):
				default:
				}
				return err
			}
		case <-healthCheckTicker.C:
			if time.Since(lastDataReceived) > 60*time.Second {
				log.Warn().Time("last_data", lastDataReceived).Msg("No AIS data received for 60 seconds, connection may be stale")
				return fmt.Errorf("connection appears stale - no data for %v", time.Since(lastDataReceived))
			}
		default:
			conn.SetReadDeadline(time.Now().Add(30 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Info().Msg("AIS stream closed normally")
					return err
				}
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Error().Err(err).Msg("AIS stream closed unexpectedly")
				}
				return fmt.Errorf("read message failed: %w", err)
			}

			lastDataReceived = time.Now()

			report, ok, err := ParseReport(msg)
			if err != nil {
				log.Debug().Err(err).Str("message", string(msg)).Msg("failed to parse AIS message")
				select {
				case errors <- fmt.Errorf("parse report: %w", err):
				default:
				}
				continue
			}
			if !ok {
				continue
			}

			select {
			case reports <- report:
			default:
				log.Warn().Str("vessel_id", report.VesselID).Msg("report channel full, dropping message")
			}
		}
	}
}

// ParseReport decodes a raw feed frame into a position report.
// Non-position messages return ok=false without an error.
func ParseReport(msg []byte) (PositionReport, bool, error) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return PositionReport{}, false, fmt.Errorf("invalid frame: %w", err)
	}
	if env.MessageType != "PositionReport" {
		return PositionReport{}, false, nil
	}

	pr := env.Message.PositionReport
	if pr.Latitude < -90 || pr.Latitude > 90 || pr.Longitude < -180 || pr.Longitude > 180 {
		return PositionReport{}, false, fmt.Errorf("position out of range: lat=%f lon=%f", pr.Latitude, pr.Longitude)
	}

	mmsi := pr.UserID
	if mmsi == 0 {
		mmsi = env.MetaData.MMSI
	}
	if mmsi == 0 {
		return PositionReport{}, false, fmt.Errorf("missing vessel identifier")
	}

	speed := pr.Sog
	if speed >= sogUnavailable || speed < 0 {
		speed = 0
	}
	course := pr.Cog
	if course >= cogUnavailable || course < 0 {
		course = 0
	}

	ts, err := time.Parse(metaTimeLayout, env.MetaData.TimeUTC)
	if err != nil {
		ts = time.Now()
	}

	return PositionReport{
		VesselID: fmt.Sprintf("%d", mmsi),
		Point: predict.TrackPoint{
			Lat:       pr.Latitude,
			Lon:       pr.Longitude,
			Speed:     speed,
			Course:    course,
			Timestamp: ts,
		},
	}, true, nil
}
