package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cogniseal/cogniseal-ledger/internal/client"
	"github.com/cogniseal/cogniseal-ledger/internal/fhe"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
	"github.com/cogniseal/cogniseal-ledger/internal/wallet"
)

// ─── Helpers ───────────────────────────────────────────────────────────

func (a *app) rpc() *client.RPC {
	return client.NewRPC(a.profile.Node, nil)
}

// connect unlocks the keystore and logs the wallet into the node.
func (a *app) connect(ctx context.Context) (*client.Session, error) {
	pass, err := a.profile.passphrase("Keystore passphrase: ")
	if err != nil {
		return nil, err
	}
	w, err := wallet.Load(a.profile.Keystore, pass)
	if err != nil {
		return nil, fmt.Errorf("unlock keystore %s: %w", a.profile.Keystore, err)
	}

	sess := client.NewSession(a.rpc(), fhe.NewFileStorage(a.profile.SignatureCache), a.log)
	if err := sess.Connect(ctx, w); err != nil {
		if msg := sess.State().Message; msg != "" {
			return nil, errors.New(msg)
		}
		return nil, err
	}
	return sess, nil
}

func fail(op string, err error) error {
	return errors.New(client.Describe(op, err))
}

func printReceipt(r *model.Receipt) {
	fmt.Printf("tx %s mined in block %d\n", r.TxHash, r.BlockNumber)
}

func formatTime(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).Local().Format("2006-01-02 15:04")
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// answerList collects repeated -a flags.
type answerList []string

func (l *answerList) String() string     { return strings.Join(*l, ",") }
func (l *answerList) Set(v string) error { *l = append(*l, v); return nil }

// ─── Wallet ────────────────────────────────────────────────────────────

func runWallet(_ context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: cogniseal wallet new|show")
	}
	switch args[0] {
	case "new":
		fs := newFlags("wallet new")
		force := fs.Bool("force", false, "Overwrite an existing keystore")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if _, err := os.Stat(a.profile.Keystore); err == nil && !*force {
			return fmt.Errorf("keystore %s already exists, use -force to replace it", a.profile.Keystore)
		}

		pass, err := a.profile.passphrase("New passphrase: ")
		if err != nil {
			return err
		}
		if len(pass) < 8 {
			return errors.New("passphrase must be at least 8 characters")
		}
		if a.profile.Passphrase == "" {
			confirm, err := a.profile.passphrase("Repeat passphrase: ")
			if err != nil {
				return err
			}
			if confirm != pass {
				return errors.New("passphrases do not match")
			}
		}

		w, err := wallet.New()
		if err != nil {
			return err
		}
		if err := w.Save(a.profile.Keystore, pass); err != nil {
			return err
		}
		fmt.Printf("Wallet %s saved to %s\n", w.Address(), a.profile.Keystore)
		return nil
	case "show":
		addr, err := wallet.ReadAddress(a.profile.Keystore)
		if err != nil {
			return err
		}
		fmt.Println(addr)
		return nil
	default:
		return fmt.Errorf("unknown wallet command %q", args[0])
	}
}

// ─── Reads ─────────────────────────────────────────────────────────────

func runExams(ctx context.Context, a *app, args []string) error {
	fs := newFlags("exams")
	page := fs.Int("page", 1, "Page number")
	perPage := fs.Int("per-page", 20, "Exams per page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	exams, err := a.rpc().ListExams(ctx, *page, *perPage)
	if err != nil {
		return fail("List exams", err)
	}
	if len(exams) == 0 {
		fmt.Println("No exams yet.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tQUESTIONS\tPASS\tATTEMPTS\tACTIVE\tCREATED")
	for _, e := range exams {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%t\t%s\n",
			e.ID, e.Title, e.QuestionCount, e.PassingScore, e.MaxAttempts, e.IsActive, formatTime(e.CreatedAt))
	}
	return tw.Flush()
}

func printExam(e *model.Exam) {
	fmt.Printf("Exam %d: %s\n", e.ID, e.Title)
	if e.Description != "" {
		fmt.Println(e.Description)
	}
	fmt.Printf("Creator:      %s\n", e.Creator)
	fmt.Printf("Questions:    %d (pass with %d)\n", e.QuestionCount, e.PassingScore)
	fmt.Printf("Max attempts: %d\n", e.MaxAttempts)
	if e.TimeLimitMinutes > 0 {
		fmt.Printf("Time limit:   %d min\n", e.TimeLimitMinutes)
	}
	if e.CooldownMinutes > 0 {
		fmt.Printf("Cooldown:     %d min\n", e.CooldownMinutes)
	}
}

func printQuestion(q model.Question) {
	fmt.Printf("\n%d. [%s] %s\n", q.Index+1, q.Type, q.Text)
}

func runExam(ctx context.Context, a *app, args []string) error {
	fs := newFlags("exam")
	id := fs.Uint64("id", 0, "Exam id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return errors.New("-id is required")
	}

	rpc := a.rpc()
	exam, err := rpc.ExamInfo(ctx, *id)
	if err != nil {
		return fail("getExamInfo()", err)
	}
	questions, err := rpc.Questions(ctx, *id)
	if err != nil {
		return fail("getQuestion()", err)
	}
	printExam(exam)
	for _, q := range questions {
		printQuestion(q)
	}
	return nil
}

// ─── Transactions ──────────────────────────────────────────────────────

func runCreate(ctx context.Context, a *app, args []string) error {
	fs := newFlags("create")
	file := fs.String("file", "", "YAML exam definition")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("-file is required")
	}
	draft, err := loadExamFile(*file)
	if err != nil {
		return err
	}

	sess, err := a.connect(ctx)
	if err != nil {
		return err
	}
	examID, err := sess.CreateExam(ctx, draft)
	if err != nil {
		return fail("Exam creation", err)
	}
	fmt.Printf("Exam %d created with %d questions.\n", examID, len(draft.Questions))
	return nil
}

func runTake(ctx context.Context, a *app, args []string) error {
	fs := newFlags("take")
	id := fs.Uint64("id", 0, "Exam id")
	var answers answerList
	fs.Var(&answers, "a", "Answer, repeated once per question (skips the prompt)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return errors.New("-id is required")
	}

	sess, err := a.connect(ctx)
	if err != nil {
		return err
	}
	exam, err := sess.LoadExamInfo(ctx, *id)
	if err != nil {
		return fail("getExamInfo()", err)
	}
	questions, err := sess.LoadQuestions(ctx, *id)
	if err != nil {
		return fail("getQuestion()", err)
	}
	info, err := sess.LoadAttemptInfo(ctx, *id, sess.Address())
	if err != nil {
		return fail("getAttemptInfo()", err)
	}

	printExam(exam)
	fmt.Printf("Attempts used: %d of %d\n", info.AttemptCount, exam.MaxAttempts)
	if !info.CanAttempt {
		if info.CooldownEndTime > time.Now().Unix() {
			return fmt.Errorf("cooldown active until %s", formatTime(info.CooldownEndTime))
		}
		return errors.New("no attempts left for this exam")
	}

	if len(answers) == 0 {
		answers, err = promptAnswers(questions)
		if err != nil {
			return err
		}
	}

	submissionID, err := sess.SubmitAnswers(ctx, *id, answers)
	if err != nil {
		return fail("Answer submission", err)
	}
	fmt.Printf("Submission %d recorded. Run `cogniseal decrypt -submission %d` to see your score.\n", submissionID, submissionID)
	return nil
}

func promptAnswers(questions []model.Question) ([]string, error) {
	reader := bufio.NewReader(os.Stdin)
	answers := make([]string, 0, len(questions))
	for _, q := range questions {
		printQuestion(q)
		if q.Type == model.QuestionTypeMultipleChoice {
			labels := make([]string, 0, 4)
			for _, slot := range client.OptionSlots() {
				labels = append(labels, fmt.Sprintf("%d=%s", slot.Value, slot.Label))
			}
			fmt.Printf("Answer (%s): ", strings.Join(labels, " "))
		} else {
			fmt.Print("Answer: ")
		}
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return nil, fmt.Errorf("read answer: %w", err)
		}
		answers = append(answers, normalizeChoice(q.Type, strings.TrimSpace(line)))
	}
	return answers, nil
}

// normalizeChoice accepts a slot letter for multiple-choice questions.
func normalizeChoice(t model.QuestionType, answer string) string {
	if t != model.QuestionTypeMultipleChoice {
		return answer
	}
	for _, slot := range client.OptionSlots() {
		if strings.EqualFold(answer, slot.Label) {
			return strconv.FormatUint(uint64(slot.Value), 10)
		}
	}
	return answer
}

func runResults(ctx context.Context, a *app, args []string) error {
	sess, err := a.connect(ctx)
	if err != nil {
		return err
	}
	results, err := sess.MySubmissions(ctx)
	if err != nil {
		return fail("Load results", err)
	}
	if len(results) == 0 {
		fmt.Println("No submissions yet.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBMISSION\tEXAM\tTITLE\tSUBMITTED\tSCORE HANDLE")
	for _, r := range results {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", r.SubmissionID, r.ExamID, r.ExamTitle, formatTime(r.SubmittedAt), r.ScoreHandle)
	}
	return tw.Flush()
}

func runDecrypt(ctx context.Context, a *app, args []string) error {
	fs := newFlags("decrypt")
	submissionID := fs.Uint64("submission", 0, "Submission id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *submissionID == 0 {
		return errors.New("-submission is required")
	}

	sess, err := a.connect(ctx)
	if err != nil {
		return err
	}
	if _, err := sess.LoadSubmissionScore(ctx, *submissionID); err != nil {
		return fail("getSubmissionScore()", err)
	}
	score, err := sess.DecryptScore(ctx)
	if err != nil {
		return fail("Decryption", err)
	}
	fmt.Printf("Submission %d score: %d\n", *submissionID, score)
	return nil
}

func runMint(ctx context.Context, a *app, args []string) error {
	fs := newFlags("mint")
	submissionID := fs.Uint64("submission", 0, "Submission id")
	examID := fs.Uint64("exam", 0, "Exam id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *submissionID == 0 || *examID == 0 {
		return errors.New("-submission and -exam are required")
	}

	sess, err := a.connect(ctx)
	if err != nil {
		return err
	}
	exam, err := sess.LoadExamInfo(ctx, *examID)
	if err != nil {
		return fail("getExamInfo()", err)
	}
	if _, err := sess.LoadSubmissionScore(ctx, *submissionID); err != nil {
		return fail("getSubmissionScore()", err)
	}
	score, err := sess.DecryptScore(ctx)
	if err != nil {
		return fail("Decryption", err)
	}
	if !sess.CanMint() {
		return fmt.Errorf("score %d is below the passing score %d", score, exam.PassingScore)
	}

	receipt, err := sess.MintCertificate(ctx, *submissionID, *examID)
	if err != nil {
		return fail("Certificate minting", err)
	}
	printReceipt(receipt)
	fmt.Printf("Certificate for %q minted.\n", exam.Title)
	return nil
}

func runCertificates(ctx context.Context, a *app, args []string) error {
	sess, err := a.connect(ctx)
	if err != nil {
		return err
	}
	ids, err := sess.MyCertificates(ctx)
	if err != nil {
		return fail("Load certificates", err)
	}
	if len(ids) == 0 {
		fmt.Println("No certificates yet.")
		return nil
	}
	for _, id := range ids {
		fmt.Printf("Exam %d\n", id)
	}
	return nil
}
