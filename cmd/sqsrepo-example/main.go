// Command sqsrepo-example enqueues a few diaries on an SQS queue and then
// drains the queue, printing every diary it receives.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/slackmgr/plugins/sqsrepo"
	"github.com/slackmgr/plugins/sqsrepo/config"
	"github.com/slackmgr/plugins/sqsrepo/zaplog"
	"github.com/spf13/pflag"
)

type diaryMessage struct {
	Text string `json:"text"`
}

// diary groups messages by the day they were written.
type diary struct {
	ID      string                    `json:"id"`
	UserID  int                       `json:"user_id"`
	Entries map[string][]diaryMessage `json:"entries"`
}

func newTestDiary(userID int) diary {
	d := diary{
		ID:      uuid.NewString(),
		UserID:  userID,
		Entries: make(map[string][]diaryMessage),
	}

	now := time.Now().UTC()

	for i := range 20 {
		date := now.AddDate(0, 0, -i)
		key := date.Format(time.DateOnly)
		d.Entries[key] = append(d.Entries[key], diaryMessage{Text: "Hi! The date is " + date.Format(time.DateTime)})
	}

	return d
}

func (d diary) String() string {
	days := make([]string, 0, len(d.Entries))
	for day := range d.Entries {
		days = append(days, day)
	}

	sort.Strings(days)

	var sb strings.Builder

	fmt.Fprintf(&sb, "diary %s (user %d)", d.ID, d.UserID)

	for _, day := range days {
		sb.WriteString("\n  ")
		sb.WriteString(day)

		for _, m := range d.Entries[day] {
			sb.WriteString(" ")
			sb.WriteString(m.Text)
		}
	}

	return sb.String()
}

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file (SQSREPO_* environment variables override it)")
	pflag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := zaplog.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := cfg.AWSConfig(ctx)
	if err != nil {
		return err
	}

	session, err := sqsrepo.New(&awsCfg, cfg.QueueName, logger, cfg.Options()...).Init(ctx)
	if err != nil {
		return err
	}

	repo := sqsrepo.NewRepository[diary](session)

	diaries := []diary{newTestDiary(1), newTestDiary(1), newTestDiary(1)}

	result, err := repo.SaveMany(ctx, diaries)
	if err != nil {
		return err
	}

	logger.WithField("sent", len(result.Successful)).WithField("failed", len(result.Failed)).Info("Diaries enqueued")

	deleted, err := repo.Poll(ctx, func(_ context.Context, d diary) bool {
		fmt.Println(d)
		return true
	}, 0, true)
	if err != nil {
		return err
	}

	logger.WithField("deleted", len(deleted)).Info("Queue drained")

	return nil
}
