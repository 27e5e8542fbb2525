package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"carteira/internal/amqp"
	"carteira/internal/core"
	"carteira/internal/services"
	"carteira/internal/sheets"
)

type countingReader struct {
	mu    sync.Mutex
	calls int
	ds    *core.Dataset
}

func (r *countingReader) ReadRecords(_ context.Context, _ string) (*core.Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.ds, nil
}

func (r *countingReader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func goalOnlySetup() (*services.DatasetService, *countingReader) {
	columns := []string{"Meta (R$)", "Valor Atual (R$)", "Progresso (%)"}
	kinds := map[string]core.FieldKind{}
	for _, c := range columns {
		kinds[c] = core.KindNumber
	}
	reader := &countingReader{ds: &core.Dataset{
		Name:    sheets.DatasetGoal,
		Columns: columns,
		Kinds:   kinds,
		Rows: []core.Record{{
			"Meta (R$)": 100000.0, "Valor Atual (R$)": 25000.0, "Progresso (%)": 0.25,
		}},
		FetchedAt: time.Now(),
	}}
	specs := []sheets.DatasetSpec{{
		Name:         sheets.DatasetGoal,
		Worksheet:    "Visão Geral",
		NumberFields: columns,
	}}
	return services.NewDatasetService(reader, specs, 0), reader
}

func TestInvalidator_HandleRefreshMessage(t *testing.T) {
	svc, reader := goalOnlySetup()
	inv := NewInvalidator(svc, nil)
	ctx := context.Background()

	if _, err := svc.Load(ctx, sheets.DatasetGoal); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := svc.Load(ctx, sheets.DatasetGoal); err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if got := reader.count(); got != 1 {
		t.Fatalf("expected 1 backend read before invalidation, got %d", got)
	}

	msg := amqp.NewDatasetRefreshedMessage(sheets.DatasetGoal, 1, time.Now())
	if err := inv.HandleRefreshMessage(ctx, msg); err != nil {
		t.Fatalf("HandleRefreshMessage: %v", err)
	}

	if _, err := svc.Load(ctx, sheets.DatasetGoal); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reader.count(); got != 2 {
		t.Errorf("expected the invalidated dataset to be reloaded, got %d reads", got)
	}
}

func TestInvalidator_IgnoresUnknownDataset(t *testing.T) {
	svc, _ := goalOnlySetup()
	inv := NewInvalidator(svc, nil)

	msg := amqp.NewDatasetRefreshedMessage("mystery", 0, time.Now())
	if err := inv.HandleRefreshMessage(context.Background(), msg); err != nil {
		t.Errorf("unknown dataset should be dropped without error, got %v", err)
	}
}

func TestInvalidator_RunWithoutAMQP(t *testing.T) {
	svc, _ := goalOnlySetup()
	inv := NewInvalidator(svc, nil)

	if err := inv.Run(context.Background()); err != nil {
		t.Errorf("Run without AMQP should be a no-op, got %v", err)
	}
}
