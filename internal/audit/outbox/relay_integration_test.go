//go:build integration

package outbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"compliancehub/internal/audit"
	"compliancehub/internal/audit/outbox"
	"compliancehub/internal/audit/store"
	"compliancehub/internal/platform/kafka"
	"compliancehub/internal/platform/postgres"
	id "compliancehub/pkg/domain"
	"compliancehub/pkg/testutil/containers"
)

type RelayIntegrationSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
}

func TestRelayIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelayIntegrationSuite))
}

func (s *RelayIntegrationSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.redpanda = mgr.GetRedpanda(s.T())
}

func (s *RelayIntegrationSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_outbox", "audit_log"))
}

func (s *RelayIntegrationSuite) TestEntriesReachTopic() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	topic := "compliance.audit.it." + id.NewRequestID().String()
	producer, err := kafka.NewProducer(ctx, s.redpanda.Brokers, topic)
	s.Require().NoError(err)
	defer producer.Close()
	s.Require().NoError(producer.EnsureTopic(ctx, 1, 1))

	st := store.NewPostgres(s.postgres.DB)
	ledger := audit.NewLedger(st)
	entry, err := ledger.Record(ctx, audit.Record{
		ActorUserID: id.NewUserID(), ActorRole: id.RoleFactory,
		Action: audit.ActionCreateEvidence, ObjectType: audit.ObjectEvidence, ObjectID: "e1",
		Metadata: map[string]any{"factoryId": "F001"},
	})
	s.Require().NoError(err)

	relay := outbox.New(st, postgres.NewTx(s.postgres.DB), producer)
	n, err := relay.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var got *kgo.Record
	for got == nil {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err())
		fetches.EachRecord(func(r *kgo.Record) {
			if got == nil {
				got = r
			}
		})
	}
	s.Equal(entry.ID.String(), string(got.Key))
	s.Contains(string(got.Value), `"action":"CREATE_EVIDENCE"`)

	n, err = relay.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Zero(n, "published rows are not relayed again")
}
