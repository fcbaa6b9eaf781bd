// Package relay builds the payloads the backend relays once a battle has
// been committed, and maps battle failures onto gRPC statuses.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/louisbranch/arena/internal/battle"
	"github.com/louisbranch/arena/internal/battle/storage"
)

// ErrInvalidPayload indicates a payload missing a field or holding the wrong
// type for it.
var ErrInvalidPayload = errors.New("invalid outcome payload")

// Commit is the decoded form of an outcome payload.
type Commit struct {
	BattleID    string
	Scenario    string
	Seed        int64
	MaxSteps    int
	LogHash     string
	CommittedAt time.Time
	Outcome     battle.Outcome
}

// Payload encodes a stored battle as a struct. Seeds are carried as decimal
// strings since struct numbers are doubles.
func Payload(rec storage.Battle) (*structpb.Struct, error) {
	outcome, err := outcomeMap(rec.Outcome)
	if err != nil {
		return nil, err
	}
	committedAt, err := protojson.Marshal(timestamppb.New(rec.CreatedAt.UTC()))
	if err != nil {
		return nil, fmt.Errorf("marshal committed_at: %w", err)
	}
	stamp, err := strconv.Unquote(string(committedAt))
	if err != nil {
		return nil, fmt.Errorf("marshal committed_at: %w", err)
	}
	return structpb.NewStruct(map[string]any{
		"battle_id":    rec.ID,
		"scenario":     rec.Scenario,
		"seed":         strconv.FormatInt(rec.Seed, 10),
		"max_steps":    rec.MaxSteps,
		"log_hash":     rec.LogHash,
		"committed_at": stamp,
		"outcome":      outcome,
	})
}

func outcomeMap(o battle.Outcome) (map[string]any, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal outcome: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal outcome: %w", err)
	}
	out["seed"] = strconv.FormatInt(o.Seed, 10)
	return out, nil
}

// ParsePayload decodes a payload built by Payload.
func ParsePayload(s *structpb.Struct) (Commit, error) {
	if s == nil {
		return Commit{}, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}
	fields := s.GetFields()
	var c Commit
	var err error
	str := func(key string) string {
		v, ok := fields[key].GetKind().(*structpb.Value_StringValue)
		if !ok {
			if err == nil {
				err = fmt.Errorf("%w: %s must be a string", ErrInvalidPayload, key)
			}
			return ""
		}
		return v.StringValue
	}
	c.BattleID = str("battle_id")
	c.Scenario = str("scenario")
	c.LogHash = str("log_hash")
	seed := str("seed")
	stamp := str("committed_at")
	if err != nil {
		return Commit{}, err
	}
	if c.Seed, err = strconv.ParseInt(seed, 10, 64); err != nil {
		return Commit{}, fmt.Errorf("%w: seed: %v", ErrInvalidPayload, err)
	}
	if n, ok := fields["max_steps"].GetKind().(*structpb.Value_NumberValue); ok {
		c.MaxSteps = int(n.NumberValue)
	}

	ts := &timestamppb.Timestamp{}
	if err := protojson.Unmarshal([]byte(strconv.Quote(stamp)), ts); err != nil {
		return Commit{}, fmt.Errorf("%w: committed_at: %v", ErrInvalidPayload, err)
	}
	c.CommittedAt = ts.AsTime()

	outcome := fields["outcome"].GetStructValue()
	if outcome == nil {
		return Commit{}, fmt.Errorf("%w: outcome must be an object", ErrInvalidPayload)
	}
	if c.Outcome, err = parseOutcome(outcome.AsMap()); err != nil {
		return Commit{}, err
	}
	return c, nil
}

func parseOutcome(m map[string]any) (battle.Outcome, error) {
	var seed int64
	if s, ok := m["seed"].(string); ok {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return battle.Outcome{}, fmt.Errorf("%w: outcome seed: %v", ErrInvalidPayload, err)
		}
		seed = n
		delete(m, "seed")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return battle.Outcome{}, fmt.Errorf("%w: outcome: %v", ErrInvalidPayload, err)
	}
	var o battle.Outcome
	if err := json.Unmarshal(data, &o); err != nil {
		return battle.Outcome{}, fmt.Errorf("%w: outcome: %v", ErrInvalidPayload, err)
	}
	o.Seed = seed
	return o, nil
}

// Marshal renders a payload as indented JSON.
func Marshal(s *structpb.Struct) ([]byte, error) {
	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}

// Unmarshal parses JSON produced by Marshal.
func Unmarshal(data []byte) (*structpb.Struct, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return s, nil
}
