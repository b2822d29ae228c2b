package ringbuffer

import "testing"

func TestNewRoundsUpToPowerOfTwo(t *testing.T) {
	rb := New(100)
	if rb.Size() != 128 {
		t.Fatalf("expected size 128, got %d", rb.Size())
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	rb := New(16)
	samples := []float32{0.1, 0.2, 0.3, 0.4}

	n, err := rb.Write(samples)
	if err != nil || n != len(samples) {
		t.Fatalf("Write() = %d, %v", n, err)
	}

	out := make([]float32, len(samples))
	n, err = rb.Read(out)
	if err != nil || n != len(samples) {
		t.Fatalf("Read() = %d, %v", n, err)
	}
	for i := range samples {
		if out[i] != samples[i] {
			t.Fatalf("sample %d: got %v want %v", i, out[i], samples[i])
		}
	}
}

func TestWriteNeverPartial(t *testing.T) {
	rb := New(4)
	big := make([]float32, 100)
	if _, err := rb.Write(big); err != ErrInsufficientSpace {
		t.Fatalf("expected ErrInsufficientSpace, got %v", err)
	}
	if rb.AvailableRead() != 0 {
		t.Fatalf("partial write leaked %d samples", rb.AvailableRead())
	}
}

func TestReadEmptyReturnsErrInsufficientData(t *testing.T) {
	rb := New(4)
	out := make([]float32, 2)
	if _, err := rb.Read(out); err != ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestWrapAround(t *testing.T) {
	rb := New(4)
	rb.Write([]float32{1, 2, 3})
	out := make([]float32, 3)
	rb.Read(out)
	rb.Write([]float32{4, 5, 6})

	got := make([]float32, 3)
	n, err := rb.Read(got)
	if err != nil || n != 3 {
		t.Fatalf("Read() after wrap = %d, %v", n, err)
	}
	want := []float32{4, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("wrap sample %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestFlushDropsBufferedSamples(t *testing.T) {
	rb := New(16)
	rb.Write([]float32{1, 2, 3, 4})
	rb.Flush()
	if rb.AvailableRead() != 0 {
		t.Fatalf("expected empty after flush, got %d available", rb.AvailableRead())
	}
	if rb.AvailableWrite() != rb.Size() {
		t.Fatalf("expected full write availability after flush")
	}
}

func TestPartialReadWhenLessAvailable(t *testing.T) {
	rb := New(16)
	rb.Write([]float32{1, 2})
	out := make([]float32, 5)
	n, err := rb.Read(out)
	if err != nil || n != 2 {
		t.Fatalf("Read() = %d, %v, want 2, nil", n, err)
	}
}
