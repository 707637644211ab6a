//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogniseal/cogniseal-ledger/internal/client"
	"github.com/cogniseal/cogniseal-ledger/internal/fhe"
	"github.com/cogniseal/cogniseal-ledger/internal/ledger"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
	"github.com/cogniseal/cogniseal-ledger/internal/wallet"
)

const defaultBaseURL = "http://localhost:8080"

var (
	baseURL string
	dbURL   string
)

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	// Optional; when set the Postgres rows behind the API are checked too.
	dbURL = os.Getenv("DATABASE_URL")

	if _, err := client.NewRPC(baseURL, nil).Network(context.Background()); err != nil {
		fmt.Printf("Ledger node at %s unreachable: %v\n", baseURL, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func connect(t *testing.T) *client.Session {
	t.Helper()
	w, err := wallet.New()
	require.NoError(t, err)
	s := client.NewSession(client.NewRPC(baseURL, nil), fhe.NewMemoryStorage(), zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx, w))
	return s
}

func TestE2EFlow(t *testing.T) {
	ctx := context.Background()
	examiner, examinee := connect(t), connect(t)

	before, err := examiner.RefreshExamCount(ctx)
	require.NoError(t, err)

	var examID, submissionID uint64

	// Step 1: Examiner creates an exam with encrypted answers
	t.Run("CreateExam", func(t *testing.T) {
		examID, err = examiner.CreateExam(ctx, client.ExamDraft{
			Title:       fmt.Sprintf("E2E Exam %d", time.Now().UnixNano()),
			Description: "Created by the e2e suite",
			Questions: []client.DraftQuestion{
				{Text: "What is 2+2?", Type: model.QuestionTypeMultipleChoice, Options: []string{"3", "4", "5", "6"}, Answer: "2"},
				{Text: "What is 3*3?", Type: model.QuestionTypeMultipleChoice, Options: []string{"6", "8", "9", "12"}, Answer: "3"},
				{Text: "Capital of France?", Type: model.QuestionTypeFillInBlank, Answer: "Paris"},
			},
			PassingScore: 2,
			MaxAttempts:  2,
		})
		require.NoError(t, err)
		assert.Equal(t, before+1, examID)
	})

	// Step 2: Examinee loads it; expected answers are never exposed
	t.Run("LoadExam", func(t *testing.T) {
		exam, err := examinee.LoadExamInfo(ctx, examID)
		require.NoError(t, err)
		assert.Equal(t, uint32(3), exam.QuestionCount)
		assert.Equal(t, examiner.Address(), exam.Creator)

		questions, err := examinee.LoadQuestions(ctx, examID)
		require.NoError(t, err)
		require.Len(t, questions, 3)
		assert.Contains(t, questions[0].Text, "B) 4")
	})

	// Step 3: Submit answers, two of three correct
	t.Run("SubmitAnswers", func(t *testing.T) {
		_, err := examinee.SubmitAnswers(ctx, examID, []string{"2"})
		assert.ErrorIs(t, err, client.ErrAnswerCount)

		submissionID, err = examinee.SubmitAnswers(ctx, examID, []string{"2", "1", "Paris"})
		require.NoError(t, err)
		assert.NotZero(t, submissionID)

		info, err := examinee.LoadAttemptInfo(ctx, examID, examinee.Address())
		require.NoError(t, err)
		assert.Equal(t, uint32(1), info.AttemptCount)
		assert.True(t, info.CanAttempt)
	})

	// Step 4: Only the examinee can decrypt the score
	t.Run("DecryptScore", func(t *testing.T) {
		_, err := examinee.LoadSubmissionScore(ctx, submissionID)
		require.NoError(t, err)
		score, err := examinee.DecryptScore(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), score)
		assert.True(t, examinee.CanMint())
	})

	// Step 5: Mint once; a second mint reverts
	t.Run("MintCertificate", func(t *testing.T) {
		_, err := examinee.MintCertificate(ctx, submissionID, examID)
		require.NoError(t, err)

		_, err = examinee.MintCertificate(ctx, submissionID, examID)
		var revert *client.RevertError
		require.ErrorAs(t, err, &revert)
		assert.Equal(t, ledger.ReasonAlreadyMinted, revert.Reason)

		certs, err := examinee.MyCertificates(ctx)
		require.NoError(t, err)
		assert.Contains(t, certs, examID)

		subs, err := examinee.MySubmissions(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, subs)
		assert.Equal(t, submissionID, subs[0].SubmissionID)
	})

	// Step 6: The rows landed in Postgres when the node runs on it
	t.Run("Persistence", func(t *testing.T) {
		if dbURL == "" {
			t.Skip("DATABASE_URL not set")
		}
		conn, err := pgx.Connect(ctx, dbURL)
		require.NoError(t, err)
		defer conn.Close(ctx)

		var questions int
		require.NoError(t, conn.QueryRow(ctx, `SELECT question_count FROM exams WHERE id = $1`, examID).Scan(&questions))
		assert.Equal(t, 3, questions)

		var minted int
		require.NoError(t, conn.QueryRow(ctx, `SELECT COUNT(*) FROM certificates WHERE exam_id = $1`, examID).Scan(&minted))
		assert.Equal(t, 1, minted)
	})
}
