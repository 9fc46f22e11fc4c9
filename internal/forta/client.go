// Package forta queries the Forta public GraphQL API for alerts and
// correlates them with inbound alert events.
package forta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arbitraryexecution/forta-relay/pkg/models"
)

// DefaultEndpoint is the public Forta GraphQL API.
const DefaultEndpoint = "https://api.forta.network/graphql"

const recentAlertsQuery = `query recentAlerts($input: AlertsInput) {
  alerts(input: $input) {
    pageInfo {
      hasNextPage
      endCursor {
        alertId
        blockNumber
      }
    }
    alerts {
      createdAt
      name
      protocol
      findingType
      hash
      source {
        transactionHash
        block {
          number
          chainId
        }
        agent {
          id
        }
      }
      severity
      metadata
      description
    }
  }
}`

// ErrNoData is returned when the API answers without a top-level data payload.
var ErrNoData = errors.New("forta response has no data")

// APIError is a non-2xx answer from the API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("forta API returned status %d: %s", e.StatusCode, e.Message)
}

// GraphQLError carries the errors array of a GraphQL response
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "forta graphql error: " + strings.Join(e.Messages, "; ")
}

// AlertsInput mirrors the AlertsInput GraphQL type
type AlertsInput struct {
	First           int      `json:"first"`
	Agents          []string `json:"agents"`
	TransactionHash string   `json:"transactionHash"`
	CreatedSince    int64    `json:"createdSince"`
	ChainID         int64    `json:"chainId"`
}

// PageInfo describes whether more alerts exist past the returned page
type PageInfo struct {
	HasNextPage bool `json:"hasNextPage"`
	EndCursor   *struct {
		AlertID     string `json:"alertId"`
		BlockNumber int64  `json:"blockNumber"`
	} `json:"endCursor,omitempty"`
}

// AlertsPage is one page of the alerts query
type AlertsPage struct {
	Alerts   []models.AlertRecord `json:"alerts"`
	PageInfo PageInfo             `json:"pageInfo"`
}

type graphqlRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

type graphqlResponse struct {
	Data *struct {
		Alerts *AlertsPage `json:"alerts"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// ClientOptions configures the API client.
type ClientOptions struct {
	Endpoint string
	Timeout  time.Duration // 0 = no timeout
	Logger   *slog.Logger
}

// Client talks to the Forta GraphQL API
type Client struct {
	endpoint   string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a new Forta API client
func NewClient(opts ClientOptions) *Client {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: opts.Timeout},
		log:        logger.With("component", "forta_client"),
	}
}

// RecentAlerts fetches a single page of alerts matching input.
func (c *Client) RecentAlerts(ctx context.Context, input AlertsInput) (*AlertsPage, error) {
	body, err := json.Marshal(graphqlRequest{
		OperationName: "recentAlerts",
		Query:         recentAlertsQuery,
		Variables:     map[string]any{"input": input},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alerts query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create forta request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forta request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read forta response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = resp.Status
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	c.log.Debug("forta public API data", "body", string(respBody))

	var out graphqlResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode forta response: %w", err)
	}

	hasData := out.Data != nil && out.Data.Alerts != nil
	if len(out.Errors) > 0 {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}
		if !hasData {
			return nil, &GraphQLError{Messages: msgs}
		}
		// Partial results: the alerts that did resolve are still usable.
		c.log.Warn("forta returned errors alongside data", "errors", msgs)
	}

	if !hasData {
		return nil, ErrNoData
	}

	return out.Data.Alerts, nil
}
