package google

import (
	"context"
	"strings"
	"testing"

	ports "carteira/internal/sheets"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing spreadsheet id" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet-id"})
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_InvalidDatasetSpec(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID: "sheet-id",
		Datasets:      []ports.DatasetSpec{{Name: ""}},
	})
	if err == nil {
		t.Fatal("expected error for invalid dataset spec")
	}
	if !strings.Contains(err.Error(), "dataset config") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:   "sheet-id",
		CredentialsFile: "/non/existent/service_account.json",
	})
	if err == nil {
		t.Fatal("expected error for unreadable credentials file")
	}
	if !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_DatasetsKeepDeclarationOrder(t *testing.T) {
	specs := ports.DefaultDatasets()
	c := &Client{specs: ports.SpecsByName(specs), order: specs}

	got := c.Datasets()
	if len(got) != len(specs) {
		t.Fatalf("Datasets() length = %d, want %d", len(got), len(specs))
	}
	for i := range specs {
		if got[i].Name != specs[i].Name {
			t.Errorf("Datasets()[%d] = %s, want %s", i, got[i].Name, specs[i].Name)
		}
	}
}

func TestClient_ReadRecordsWithoutService(t *testing.T) {
	c := &Client{}
	if _, err := c.ReadRecords(context.Background(), "transactions"); err == nil {
		t.Error("expected error when service is not initialized")
	}

	if _, err := c.Title(context.Background()); err == nil {
		t.Error("expected error when service is not initialized")
	}
}
