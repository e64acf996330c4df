package bitfinex

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/finbridge/go-bitfinex-bridge/domain"
)

// SyncAPI fetches one-shot book snapshots over the venue's public REST API.
type SyncAPI struct {
	endpoint   string
	httpClient *http.Client
}

func NewSyncAPI(endpoint string) *SyncAPI {
	return &SyncAPI{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (api *SyncAPI) OrderBookSnapshot(symbol *domain.MarketSymbol, depth int) (*domain.BookSnapshot, error) {
	url := fmt.Sprintf("%s/v2/book/%s/P0?len=%d", api.endpoint, symbol.Ticker(), depth)

	resp, err := api.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed for %s: %w", symbol.String(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot response for %s: %w", symbol.String(), err)
	}

	if venueErr := parseErrorFrame(body); venueErr != nil {
		logger.Printf("snapshot rejected for %s: %s", symbol.String(), venueErr)
		return nil, venueErr
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot request for %s returned status %d", symbol.String(), resp.StatusCode)
	}

	var triples [][]float64
	if err := json.Unmarshal(body, &triples); err != nil {
		return nil, fmt.Errorf("unreadable snapshot payload for %s: %w", symbol.String(), err)
	}

	levels := make([]domain.RawLevel, 0, len(triples))
	for _, triple := range triples {
		lvl, err := rawLevelFromTriple(triple)
		if err != nil {
			return nil, fmt.Errorf("bad snapshot level for %s: %w", symbol.String(), err)
		}
		levels = append(levels, lvl)
	}

	return domain.SnapshotFromRawLevels(symbol, levels), nil
}

// parseErrorFrame detects the venue's ["error", code, "message"] payloads,
// e.g. an unsupported pair.
func parseErrorFrame(body []byte) error {
	var frame []json.RawMessage
	if err := json.Unmarshal(body, &frame); err != nil || len(frame) < 3 {
		return nil
	}

	var tag string
	if err := json.Unmarshal(frame[0], &tag); err != nil || tag != "error" {
		return nil
	}

	var code int
	var msg string
	_ = json.Unmarshal(frame[1], &code)
	_ = json.Unmarshal(frame[2], &msg)
	return fmt.Errorf("venue error %d: %s", code, msg)
}
