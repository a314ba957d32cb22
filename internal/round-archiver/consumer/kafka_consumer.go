package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/craps-oracle-table/pkg/contracts/events"
)

// MessageReader é a parte do kafka.Reader usada pelo processor
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Repo interface {
	InsertHistory(ctx context.Context, e events.TableEvent) (bool, error)
	UpsertCurrent(ctx context.Context, e events.TableEvent) error
}

type Cache interface {
	SetLatest(ctx context.Context, e events.TableEvent) error
}

// Processor consome eventos da mesa, atualiza o cache, persiste o histórico
// e dispara o broadcast. Callbacks de métricas são opcionais.
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Repo   Repo
	Cache  Cache
	DLQ    MessageWriter // mensagens que não decodificam

	RetryBackoff time.Duration

	OnConsumed     func()
	OnCached       func()
	OnPersist      func()
	OnDuplicate    func()
	OnError        func(string) // métricas por fase
	OnAfterPersist func(events.TableEvent)
}

// Run processa até o contexto ser cancelado.
// O offset só é confirmado depois da persistência; falha no banco faz a mensagem ser relida.
func (p *Processor) Run(ctx context.Context) error {
	backoff := p.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		for {
			err := p.Handle(ctx, m)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// banco fora: tenta a mesma mensagem de novo
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
		}

		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			p.fail("commit")
		}
	}
}

// Handle processa uma mensagem. Só retorna erro quando vale a pena tentar de novo.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) error {
	var ev events.TableEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.TableID == "" {
		p.Log.Warn("invalid table event", zap.Int64("offset", m.Offset), zap.Error(err))
		p.fail("decode")
		p.deadLetter(ctx, m)
		return nil
	}

	// cache não bloqueia persistência
	if err := p.Cache.SetLatest(ctx, ev); err != nil {
		p.Log.Warn("redis set failed", zap.String("table_id", ev.TableID), zap.Error(err))
		p.fail("cache")
	} else if p.OnCached != nil {
		p.OnCached()
	}

	inserted, err := p.Repo.InsertHistory(ctx, ev)
	if err != nil {
		p.Log.Warn("db insert history failed", zap.String("table_id", ev.TableID), zap.Int64("series_id", ev.SeriesID), zap.Error(err))
		p.fail("db_history")
		return err
	}
	if !inserted {
		p.Log.Debug("duplicate table event", zap.String("kind", ev.Kind), zap.Int64("series_id", ev.SeriesID))
		if p.OnDuplicate != nil {
			p.OnDuplicate()
		}
		return nil
	}
	if err := p.Repo.UpsertCurrent(ctx, ev); err != nil {
		p.Log.Warn("db upsert failed", zap.String("table_id", ev.TableID), zap.Error(err))
		p.fail("db_upsert")
		return err
	}
	if p.OnPersist != nil {
		p.OnPersist()
	}
	if p.OnAfterPersist != nil {
		p.OnAfterPersist(ev)
	}
	return nil
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message) {
	if p.DLQ == nil {
		return
	}
	dl := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: append(m.Headers,
			kafka.Header{Key: "source_topic", Value: []byte(m.Topic)},
		),
		Time: time.Now(),
	}
	if err := p.DLQ.WriteMessages(ctx, dl); err != nil {
		p.Log.Error("dlq write failed", zap.Int64("offset", m.Offset), zap.Error(err))
		p.fail("dlq")
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
