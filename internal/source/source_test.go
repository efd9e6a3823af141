package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// ── JSON ──

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "cpu.json", `{
  "results": [{"host": "a", "cpu": 0.4, "max": 1}],
  "metadata": {"selects": ["cpu", "max"], "groups": ["host"]}
}`)

	res, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(res.Metadata.Selects, []string{"cpu", "max"}) {
		t.Errorf("selects = %v", res.Metadata.Selects)
	}
	if !reflect.DeepEqual(res.Metadata.Groups, []string{"host"}) {
		t.Errorf("groups = %v", res.Metadata.Groups)
	}
	if res.Len() != 1 || res.First()["cpu"] != 0.4 {
		t.Errorf("rows = %v", res.Results)
	}
}

func TestLoadJSONRowArray(t *testing.T) {
	path := writeFile(t, "rows.json", `[{"b": 2, "a": 1}, {"a": 3}]`)

	res, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(res.Metadata.Selects, []string{"a", "b"}) {
		t.Errorf("inferred selects = %v", res.Metadata.Selects)
	}
	if res.Len() != 2 {
		t.Errorf("rows = %d", res.Len())
	}
}

func TestLoadJSONEmpty(t *testing.T) {
	path := writeFile(t, "empty.json", `{"metadata": {"selects": ["v"]}}`)
	res, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Results == nil || res.Len() != 0 {
		t.Errorf("results = %#v", res.Results)
	}
}

func TestLoadJSONMalformed(t *testing.T) {
	path := writeFile(t, "bad.json", `{"results": [`)
	if _, err := Load(context.Background(), path); err == nil {
		t.Error("malformed JSON should fail")
	}
}

// ── CSV ──

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "disk.csv", "host,used,limit,ok\nweb-1,42.5,100,true\nweb-2,,80,false\n")

	res, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(res.Metadata.Selects, []string{"host", "used", "limit", "ok"}) {
		t.Errorf("selects = %v", res.Metadata.Selects)
	}

	first := res.Results[0]
	if first["host"] != "web-1" || first["used"] != 42.5 || first["limit"] != 100.0 || first["ok"] != true {
		t.Errorf("first row = %v", first)
	}
	if _, ok := res.Results[1]["used"]; ok {
		t.Error("empty cells should be left out of the row")
	}
}

func TestLoadCSVMissingHeader(t *testing.T) {
	path := writeFile(t, "empty.csv", "")
	if _, err := Load(context.Background(), path); err == nil {
		t.Error("empty CSV should fail")
	}
}

func TestGroupsMoveColumns(t *testing.T) {
	path := writeFile(t, "g.csv", "region,host,load\neu,a,1\n")

	res, err := NewLoader(0).Load(context.Background(), Spec{Path: path, Groups: []string{"region", "host"}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(res.Metadata.Selects, []string{"load"}) {
		t.Errorf("selects = %v", res.Metadata.Selects)
	}
	if !reflect.DeepEqual(res.Metadata.Groups, []string{"region", "host"}) {
		t.Errorf("groups = %v", res.Metadata.Groups)
	}
}

// ── XLSX ──

func writeWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	f.SetCellValue("Sheet1", "A1", "queue")
	f.SetCellValue("Sheet1", "B1", "depth")
	f.SetCellValue("Sheet1", "A2", "orders")
	f.SetCellValue("Sheet1", "B2", 17)

	if _, err := f.NewSheet("Limits"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Limits", "A1", "max")
	f.SetCellValue("Limits", "A2", 250.5)

	path := filepath.Join(t.TempDir(), "queues.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func TestLoadXLSX(t *testing.T) {
	path := writeWorkbook(t)

	res, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(res.Metadata.Selects, []string{"queue", "depth"}) {
		t.Errorf("selects = %v", res.Metadata.Selects)
	}
	if res.First()["queue"] != "orders" || res.First()["depth"] != 17.0 {
		t.Errorf("row = %v", res.First())
	}

	res, err = NewLoader(0).Load(context.Background(), Spec{Path: path, Sheet: "Limits"})
	if err != nil {
		t.Fatalf("Load sheet: %v", err)
	}
	if res.First()["max"] != 250.5 {
		t.Errorf("Limits row = %v", res.First())
	}

	if _, err := NewLoader(0).Load(context.Background(), Spec{Path: path, Sheet: "Nope"}); err == nil {
		t.Error("unknown sheet should fail")
	}
}

// ── Dispatch / cache ──

func TestLoadUnsupported(t *testing.T) {
	path := writeFile(t, "results.parquet", "x")
	if _, err := Load(context.Background(), path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestLoadCanceled(t *testing.T) {
	path := writeFile(t, "v.csv", "v\n1\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Load(ctx, path); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestLoaderCacheReturnsCopies(t *testing.T) {
	path := writeFile(t, "v.csv", "v\n1\n")
	l := NewLoader(time.Minute)

	first, err := l.Load(context.Background(), Spec{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	first.Results[0]["v"] = "mutated"
	first.Metadata.Selects[0] = "mutated"

	second, err := l.Load(context.Background(), Spec{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if second.First()["v"] != 1.0 || second.Metadata.Selects[0] != "v" {
		t.Errorf("cached results were shared: %+v", second)
	}
	if l.cache.Len() != 1 {
		t.Errorf("cache entries = %d, want 1", l.cache.Len())
	}
}

func TestLoaderCacheSeesFileChanges(t *testing.T) {
	path := writeFile(t, "v.csv", "v\n1\n")
	l := NewLoader(time.Minute)
	if _, err := l.Load(context.Background(), Spec{Path: path}); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("v\n22\n"), 0644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	res, err := l.Load(context.Background(), Spec{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if res.First()["v"] != 22.0 {
		t.Errorf("stale cache entry served: %v", res.First())
	}
}

func TestPromise(t *testing.T) {
	path := writeFile(t, "v.csv", "v\n5\n")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := NewLoader(0).Promise(ctx, Spec{Path: path}).Await(ctx)
	if err != nil || res.First()["v"] != 5.0 {
		t.Errorf("Promise = %v, %v", res, err)
	}
}
