package models

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

type MessageType string

const (
	MessageRoundOpened  MessageType = "ROUND_OPENED"
	MessageRoundSettled MessageType = "ROUND_SETTLED"
	MessageWinners      MessageType = "WINNERS"
	MessageYourResult   MessageType = "YOUR_RESULT"
	MessageBetAccepted  MessageType = "BET_ACCEPTED"
	MessageError        MessageType = "ERROR"
	MessagePong         MessageType = "PONG"

	MessageBet  MessageType = "BET"
	MessagePing MessageType = "PING"
)

type ErrorCode string

const (
	ErrorCodeValidation  ErrorCode = "VALIDATION"
	ErrorCodeDuplicate   ErrorCode = "DUPLICATE"
	ErrorCodeRoundClosed ErrorCode = "ROUND_CLOSED"
	ErrorCodeInvalid     ErrorCode = "INVALID"
	ErrorCodeBadInput    ErrorCode = "BAD_INPUT"
	ErrorCodeTransport   ErrorCode = "TRANSPORT"
)

const (
	ResultWin  = "WIN"
	ResultLose = "LOSE"
)

// Message is the outbound envelope shared by the websocket hub and the
// redis event publisher. Fields irrelevant to Type are omitted.
type Message struct {
	Type          MessageType      `json:"type"`
	RoundID       int64            `json:"round_id,omitempty"`
	ClosesAtMs    int64            `json:"closes_at_ms,omitempty"`
	WinningNumber int              `json:"winning_number,omitempty"`
	Winners       []WinnerResponse `json:"winners,omitempty"`
	Nickname      string           `json:"nickname,omitempty"`
	Result        string           `json:"result,omitempty"`
	Payout        string           `json:"payout,omitempty"`
	Code          ErrorCode        `json:"code,omitempty"`
	Message       string           `json:"message,omitempty"`
	Timestamp     int64            `json:"timestamp,omitempty"`
}

// MarshalJSON keeps an empty winners list on WINNERS messages.
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	if m.Type != MessageWinners {
		return json.Marshal(plain(m))
	}
	winners := m.Winners
	if winners == nil {
		winners = []WinnerResponse{}
	}
	return json.Marshal(struct {
		plain
		Winners []WinnerResponse `json:"winners"`
	}{plain(m), winners})
}

// InboundMessage is what clients send over the websocket.
type InboundMessage struct {
	Type     string           `json:"type"`
	Nickname string           `json:"nickname"`
	Number   int              `json:"number"`
	Amount   *decimal.Decimal `json:"amount"`
}

func (m *InboundMessage) Is(t MessageType) bool {
	return strings.EqualFold(strings.TrimSpace(m.Type), string(t))
}

func RoundOpenedMessage(roundID, closesAtMs int64) *Message {
	return &Message{Type: MessageRoundOpened, RoundID: roundID, ClosesAtMs: closesAtMs}
}

func RoundSettledMessage(roundID int64, winningNumber int) *Message {
	return &Message{Type: MessageRoundSettled, RoundID: roundID, WinningNumber: winningNumber}
}

func WinnersMessage(roundID int64, winners []WinnerInfo) *Message {
	return &Message{Type: MessageWinners, RoundID: roundID, Winners: NewWinnerResponses(winners)}
}

func YourResultMessage(roundID int64, payout decimal.Decimal) *Message {
	result := ResultLose
	if payout.IsPositive() {
		result = ResultWin
	}
	return &Message{
		Type:    MessageYourResult,
		RoundID: roundID,
		Result:  result,
		Payout:  FormatAmount(payout),
	}
}

func ErrorMessage(code ErrorCode, message string) *Message {
	return &Message{Type: MessageError, Code: code, Message: message}
}
