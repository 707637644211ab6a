package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/fhe"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
)

// Event signatures. topic0 of a log is keccak256 of its signature.
const (
	SigExamCreated       = "ExamCreated(uint256,address,string,uint32,uint32)"
	SigAnswersSubmitted  = "AnswersSubmitted(uint256,uint256,address,uint256)"
	SigExamGraded        = "ExamGraded(uint256,uint256,address,bytes32)"
	SigCertificateMinted = "CertificateMinted(uint256,address,uint256)"
)

var (
	TopicExamCreated       = chain.EventID(SigExamCreated)
	TopicAnswersSubmitted  = chain.EventID(SigAnswersSubmitted)
	TopicExamGraded        = chain.EventID(SigExamGraded)
	TopicCertificateMinted = chain.EventID(SigCertificateMinted)
)

var ErrUnknownEvent = errors.New("unknown event")

var eventNames = map[chain.Hash]string{
	TopicExamCreated:       "ExamCreated",
	TopicAnswersSubmitted:  "AnswersSubmitted",
	TopicExamGraded:        "ExamGraded",
	TopicCertificateMinted: "CertificateMinted",
}

// EventName returns the event name for a topic0, or "" when unknown.
func EventName(topic0 chain.Hash) string { return eventNames[topic0] }

// EventTopic returns topic0 for an event name.
func EventTopic(name string) (chain.Hash, bool) {
	for topic, n := range eventNames {
		if n == name {
			return topic, true
		}
	}
	return chain.Hash{}, false
}

// ExamCreated is emitted once per exam.
type ExamCreated struct {
	ExamID        uint64        `json:"exam_id"`
	Creator       chain.Address `json:"creator"`
	Title         string        `json:"title"`
	QuestionCount uint32        `json:"question_count"`
	PassingScore  uint32        `json:"passing_score"`
}

// AnswersSubmitted is emitted for every accepted submission.
type AnswersSubmitted struct {
	SubmissionID uint64        `json:"submission_id"`
	ExamID       uint64        `json:"exam_id"`
	Examinee     chain.Address `json:"examinee"`
	SubmittedAt  int64         `json:"submitted_at"`
}

// ExamGraded carries the handle of the encrypted score.
type ExamGraded struct {
	SubmissionID   uint64        `json:"submission_id"`
	ExamID         uint64        `json:"exam_id"`
	Examinee       chain.Address `json:"examinee"`
	EncryptedScore fhe.Handle    `json:"encrypted_score"`
}

// CertificateMinted is emitted when a certificate is issued.
type CertificateMinted struct {
	ExamID       uint64        `json:"exam_id"`
	Examinee     chain.Address `json:"examinee"`
	SubmissionID uint64        `json:"submission_id"`
}

type examCreatedData struct {
	Title         string `json:"title"`
	QuestionCount uint32 `json:"question_count"`
	PassingScore  uint32 `json:"passing_score"`
}

type answersSubmittedData struct {
	SubmittedAt int64 `json:"submitted_at"`
}

type examGradedData struct {
	EncryptedScore fhe.Handle `json:"encrypted_score"`
}

type certificateMintedData struct {
	SubmissionID uint64 `json:"submission_id"`
}

func (e ExamCreated) topics() ([]chain.Hash, any) {
	return []chain.Hash{TopicExamCreated, chain.Uint64Topic(e.ExamID), chain.AddressTopic(e.Creator)},
		examCreatedData{Title: e.Title, QuestionCount: e.QuestionCount, PassingScore: e.PassingScore}
}

func (e AnswersSubmitted) topics() ([]chain.Hash, any) {
	return []chain.Hash{TopicAnswersSubmitted, chain.Uint64Topic(e.SubmissionID), chain.Uint64Topic(e.ExamID), chain.AddressTopic(e.Examinee)},
		answersSubmittedData{SubmittedAt: e.SubmittedAt}
}

func (e ExamGraded) topics() ([]chain.Hash, any) {
	return []chain.Hash{TopicExamGraded, chain.Uint64Topic(e.SubmissionID), chain.Uint64Topic(e.ExamID), chain.AddressTopic(e.Examinee)},
		examGradedData{EncryptedScore: e.EncryptedScore}
}

func (e CertificateMinted) topics() ([]chain.Hash, any) {
	return []chain.Hash{TopicCertificateMinted, chain.Uint64Topic(e.ExamID), chain.AddressTopic(e.Examinee)},
		certificateMintedData{SubmissionID: e.SubmissionID}
}

type event interface {
	topics() ([]chain.Hash, any)
}

func checkTopics(l model.Log, topic0 chain.Hash, n int) error {
	if len(l.Topics) != n || l.Topics[0] != topic0 {
		return fmt.Errorf("%w: topic0 %s with %d topics", ErrUnknownEvent, topicOrZero(l), len(l.Topics))
	}
	return nil
}

func topicOrZero(l model.Log) chain.Hash {
	if len(l.Topics) == 0 {
		return chain.Hash{}
	}
	return l.Topics[0]
}

func DecodeExamCreated(l model.Log) (*ExamCreated, error) {
	if err := checkTopics(l, TopicExamCreated, 3); err != nil {
		return nil, err
	}
	var d examCreatedData
	if err := json.Unmarshal(l.Data, &d); err != nil {
		return nil, fmt.Errorf("decode ExamCreated data: %w", err)
	}
	return &ExamCreated{
		ExamID:        l.Topics[1].Uint64(),
		Creator:       l.Topics[2].Address(),
		Title:         d.Title,
		QuestionCount: d.QuestionCount,
		PassingScore:  d.PassingScore,
	}, nil
}

func DecodeAnswersSubmitted(l model.Log) (*AnswersSubmitted, error) {
	if err := checkTopics(l, TopicAnswersSubmitted, 4); err != nil {
		return nil, err
	}
	var d answersSubmittedData
	if err := json.Unmarshal(l.Data, &d); err != nil {
		return nil, fmt.Errorf("decode AnswersSubmitted data: %w", err)
	}
	return &AnswersSubmitted{
		SubmissionID: l.Topics[1].Uint64(),
		ExamID:       l.Topics[2].Uint64(),
		Examinee:     l.Topics[3].Address(),
		SubmittedAt:  d.SubmittedAt,
	}, nil
}

func DecodeExamGraded(l model.Log) (*ExamGraded, error) {
	if err := checkTopics(l, TopicExamGraded, 4); err != nil {
		return nil, err
	}
	var d examGradedData
	if err := json.Unmarshal(l.Data, &d); err != nil {
		return nil, fmt.Errorf("decode ExamGraded data: %w", err)
	}
	return &ExamGraded{
		SubmissionID:   l.Topics[1].Uint64(),
		ExamID:         l.Topics[2].Uint64(),
		Examinee:       l.Topics[3].Address(),
		EncryptedScore: d.EncryptedScore,
	}, nil
}

func DecodeCertificateMinted(l model.Log) (*CertificateMinted, error) {
	if err := checkTopics(l, TopicCertificateMinted, 3); err != nil {
		return nil, err
	}
	var d certificateMintedData
	if err := json.Unmarshal(l.Data, &d); err != nil {
		return nil, fmt.Errorf("decode CertificateMinted data: %w", err)
	}
	return &CertificateMinted{
		ExamID:       l.Topics[1].Uint64(),
		Examinee:     l.Topics[2].Address(),
		SubmissionID: d.SubmissionID,
	}, nil
}

// DecodeLog decodes any ledger event into its typed form.
func DecodeLog(l model.Log) (any, error) {
	switch topicOrZero(l) {
	case TopicExamCreated:
		return DecodeExamCreated(l)
	case TopicAnswersSubmitted:
		return DecodeAnswersSubmitted(l)
	case TopicExamGraded:
		return DecodeExamGraded(l)
	case TopicCertificateMinted:
		return DecodeCertificateMinted(l)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, topicOrZero(l))
	}
}

// EventQuery selects logs of one event by its indexed arguments. Zero values
// match everything.
type EventQuery struct {
	Event        string
	ExamID       uint64
	Account      *chain.Address
	SubmissionID uint64
	FromBlock    uint64
	ToBlock      uint64
	Limit        int
}

// Filter translates q into topic positions for its event.
func (q EventQuery) Filter() (model.LogFilter, error) {
	f := model.LogFilter{FromBlock: q.FromBlock, ToBlock: q.ToBlock, Limit: q.Limit}
	if q.Event == "" {
		if q.ExamID != 0 || q.Account != nil || q.SubmissionID != 0 {
			return f, errors.New("argument filters need an event name")
		}
		return f, nil
	}
	topic0, ok := EventTopic(q.Event)
	if !ok {
		return f, fmt.Errorf("%w: %s", ErrUnknownEvent, q.Event)
	}
	f.Topics[0] = &topic0

	set := func(i int, h chain.Hash) { f.Topics[i] = &h }
	switch topic0 {
	case TopicExamCreated, TopicCertificateMinted:
		if q.SubmissionID != 0 {
			return f, fmt.Errorf("%s has no indexed submission id", q.Event)
		}
		if q.ExamID != 0 {
			set(1, chain.Uint64Topic(q.ExamID))
		}
		if q.Account != nil {
			set(2, chain.AddressTopic(*q.Account))
		}
	default:
		if q.SubmissionID != 0 {
			set(1, chain.Uint64Topic(q.SubmissionID))
		}
		if q.ExamID != 0 {
			set(2, chain.Uint64Topic(q.ExamID))
		}
		if q.Account != nil {
			set(3, chain.AddressTopic(*q.Account))
		}
	}
	return f, nil
}
