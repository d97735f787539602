package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestNew_AutoDimension(t *testing.T) {
	initOnce.Do(func() {})
	functionName = "watermark-lambda"
	defer func() { functionName = "" }()

	r := New(Namespace)
	if r.namespace != Namespace {
		t.Errorf("expected namespace %s, got %s", Namespace, r.namespace)
	}
	if r.dimensions["FunctionName"] != "watermark-lambda" {
		t.Errorf("expected FunctionName dimension, got %q", r.dimensions["FunctionName"])
	}
}

func TestRecorder_FlushOutput(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()
	functionName = ""

	New(Namespace).
		Dimension("Outcome", "success").
		Metric("AttemptLatencyMs", 1234.5, UnitMilliseconds).
		Count("Attempts").
		Property("requestId", "wm-abc").
		Flush()

	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("failed to parse EMF output: %v\nOutput: %s", err, buf.String())
	}

	awsMap, ok := doc["_aws"].(map[string]interface{})
	if !ok {
		t.Fatal("missing _aws directive")
	}
	if _, ok := awsMap["Timestamp"]; !ok {
		t.Error("missing Timestamp in _aws directive")
	}
	cwArr, ok := awsMap["CloudWatchMetrics"].([]interface{})
	if !ok || len(cwArr) != 1 {
		t.Fatalf("CloudWatchMetrics should hold one entry, got %v", awsMap["CloudWatchMetrics"])
	}
	cw := cwArr[0].(map[string]interface{})
	if cw["Namespace"] != Namespace {
		t.Errorf("expected namespace %s, got %v", Namespace, cw["Namespace"])
	}
	if doc["Outcome"] != "success" {
		t.Errorf("expected Outcome=success, got %v", doc["Outcome"])
	}
	if doc["AttemptLatencyMs"] != 1234.5 {
		t.Errorf("expected AttemptLatencyMs=1234.5, got %v", doc["AttemptLatencyMs"])
	}
	if doc["Attempts"] != float64(1) {
		t.Errorf("expected Attempts=1, got %v", doc["Attempts"])
	}
	if doc["requestId"] != "wm-abc" {
		t.Errorf("expected requestId property, got %v", doc["requestId"])
	}
}

func TestRecorder_FlushEmpty(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	New("Test").Dimension("Op", "noop").Flush()
	if buf.Len() != 0 {
		t.Errorf("expected no output for recorder without metrics, got: %s", buf.String())
	}
}

func TestRecorder_Duration(t *testing.T) {
	functionName = ""
	rec := New("Test").Duration("UploadMs", 1500*time.Millisecond)

	if rec.values["UploadMs"] != float64(1500) {
		t.Errorf("expected UploadMs=1500, got %v", rec.values["UploadMs"])
	}
	if rec.metrics["UploadMs"].Unit != UnitMilliseconds {
		t.Errorf("expected unit Milliseconds, got %v", rec.metrics["UploadMs"].Unit)
	}
}
