// Command txgen produces signed stream ledger transactions for manual and
// smoke testing against a running node:
//
//	go run scripts/txgen.go -op create -actor alice -recipient bob \
//	    -amount 10.5 -duration-seconds 3600 | curl -s -X POST \
//	    -H 'Content-Type: application/json' -d @- localhost:18080/v1/p2p/tx
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/streampay/streampay/internal/domain/amount"
	"github.com/streampay/streampay/internal/p2p/protocol"
)

type options struct {
	op         string
	actor      string
	txID       string
	nonce      string
	timestamp  string
	privateKey string

	account         string
	amountStr       string
	streamID        int64
	recipient       string
	durationSeconds int64
}

func main() {
	var opt options

	flag.StringVar(&opt.op, "op", "", "operation: fund|create|accept|claim|cancel")
	flag.StringVar(&opt.actor, "actor", "smoke", "acting account")
	flag.StringVar(&opt.txID, "tx-id", "", "tx identifier; auto-generated when empty")
	flag.StringVar(&opt.nonce, "nonce", "", "nonce; auto-generated when empty")
	flag.StringVar(&opt.timestamp, "timestamp", "", "RFC3339 timestamp; default now UTC")
	flag.StringVar(&opt.privateKey, "private-key", "", "base64 private key (32-byte seed or 64-byte private key); default random")

	flag.StringVar(&opt.account, "account", "", "account for fund; defaults to actor")
	flag.StringVar(&opt.amountStr, "amount", "", "decimal amount in units, e.g. 10.5")
	flag.Int64Var(&opt.streamID, "stream-id", 0, "stream identifier")
	flag.StringVar(&opt.recipient, "recipient", "", "recipient account for create")
	flag.Int64Var(&opt.durationSeconds, "duration-seconds", 0, "vesting duration in seconds for create")
	flag.Parse()

	op, err := parseOperation(opt.op)
	if err != nil {
		log.Fatal(err)
	}
	opt.actor = strings.TrimSpace(opt.actor)
	if opt.actor == "" {
		log.Fatal("actor is required")
	}

	payload, err := buildPayload(op, opt)
	if err != nil {
		log.Fatal(err)
	}

	privateKey, err := loadPrivateKey(opt.privateKey)
	if err != nil {
		log.Fatal(err)
	}
	ts, err := parseTimestamp(opt.timestamp)
	if err != nil {
		log.Fatal(err)
	}

	txID := strings.TrimSpace(opt.txID)
	if txID == "" {
		txID = autoID("tx", ts)
	}
	nonce := strings.TrimSpace(opt.nonce)
	if nonce == "" {
		nonce = autoID("n", ts)
	}
	tx := protocol.Tx{
		TxID:      txID,
		Nonce:     nonce,
		Timestamp: ts,
		Actor:     opt.actor,
		Op:        op,
		Payload:   payload,
	}
	if err := tx.Sign(privateKey); err != nil {
		log.Fatal(err)
	}

	out, err := json.Marshal(tx)
	if err != nil {
		log.Fatal(err)
	}
	_, _ = os.Stdout.Write(out)
}

func parseOperation(raw string) (protocol.Operation, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "fund", "account-fund", "account_fund":
		return protocol.OpAccountFund, nil
	case "create", "stream-create", "stream_create":
		return protocol.OpStreamCreate, nil
	case "accept", "stream-accept", "stream_accept":
		return protocol.OpStreamAccept, nil
	case "claim", "stream-claim", "stream_claim":
		return protocol.OpStreamClaim, nil
	case "cancel", "stream-cancel", "stream_cancel":
		return protocol.OpStreamCancel, nil
	default:
		return "", fmt.Errorf("unsupported op: %q", raw)
	}
}

func buildPayload(op protocol.Operation, opt options) (json.RawMessage, error) {
	switch op {
	case protocol.OpAccountFund:
		account := strings.TrimSpace(opt.account)
		if account == "" {
			account = opt.actor
		}
		amt, err := parseAmount(opt.amountStr)
		if err != nil {
			return nil, err
		}
		return json.Marshal(protocol.AccountFundPayload{Account: account, Amount: amt})

	case protocol.OpStreamCreate:
		if opt.streamID <= 0 {
			return nil, errors.New("stream-id is required for create")
		}
		recipient := strings.TrimSpace(opt.recipient)
		if recipient == "" {
			return nil, errors.New("recipient is required for create")
		}
		if opt.durationSeconds <= 0 {
			return nil, errors.New("duration-seconds is required for create")
		}
		amt, err := parseAmount(opt.amountStr)
		if err != nil {
			return nil, err
		}
		return json.Marshal(protocol.StreamCreatePayload{
			StreamID:        opt.streamID,
			Recipient:       recipient,
			Amount:          amt,
			DurationSeconds: opt.durationSeconds,
		})

	case protocol.OpStreamAccept:
		if opt.streamID <= 0 {
			return nil, errors.New("stream-id is required for accept")
		}
		return json.Marshal(protocol.StreamAcceptPayload{StreamID: opt.streamID})

	case protocol.OpStreamClaim:
		if opt.streamID <= 0 {
			return nil, errors.New("stream-id is required for claim")
		}
		return json.Marshal(protocol.StreamClaimPayload{StreamID: opt.streamID})

	case protocol.OpStreamCancel:
		if opt.streamID <= 0 {
			return nil, errors.New("stream-id is required for cancel")
		}
		return json.Marshal(protocol.StreamCancelPayload{StreamID: opt.streamID})
	}
	return nil, fmt.Errorf("unsupported op: %s", op)
}

func parseAmount(raw string) (amount.Amount, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, errors.New("amount is required")
	}
	amt, err := amount.Parse(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid amount: %w", err)
	}
	return amt, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Now().UTC(), nil
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	return parsed.UTC(), nil
}

func loadPrivateKey(raw string) (ed25519.PrivateKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		_, key, err := ed25519.GenerateKey(rand.Reader)
		return key, err
	}
	decoded, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid private-key base64: %w", err)
	}
	switch len(decoded) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(decoded), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(decoded), nil
	default:
		return nil, fmt.Errorf("invalid private-key length: %d (expected 32 or 64 bytes)", len(decoded))
	}
}

func autoID(prefix string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", prefix, ts.UnixNano())
}
