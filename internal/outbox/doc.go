// Package outbox relays reconciliation events to Kafka.
//
// # Overview
//
// Reconciliation and job handlers insert domain.OutboxEvent rows through
// repository.OutboxRepository in the same transaction as the rows they
// describe. The Relay polls unpublished events, writes them to a Kafka topic
// and stamps published_at. Delivery is at least once: an event is published
// again if the relay stops between the Kafka write and the commit.
//
// # Event Types
//
//   - publication.created: a canonical publication was created
//   - catalog_publication.synced: a catalog record was created or merged
//   - source.errored: a catalog no longer resolves a source
//
// # Messages
//
// Each message is keyed by "<aggregate_type>:<aggregate_id>" so events of one
// aggregate land on one partition in order. The value is the JSON payload;
// event_id, event_type and aggregate_type travel as headers.
//
// # Usage
//
//	writer := outbox.NewKafkaWriter(outbox.WriterConfig{
//	    Brokers: cfg.Kafka.Brokers,
//	    Topic:   cfg.Kafka.Topic,
//	})
//	relay := outbox.NewRelay(factory, writer, outbox.RelayConfig{}, metrics, logger)
//	go relay.Run(ctx)
package outbox
