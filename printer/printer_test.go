package printer

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixxel-company-limited/epos-bridge/adapter"
	"github.com/nixxel-company-limited/epos-bridge/epos"
)

type receipt struct {
	code   int
	status *epos.StatusSnapshot
}

func listen(p *Printer) <-chan receipt {
	ch := make(chan receipt, 1)
	p.SetReceiveListener(func(code int, status *epos.StatusSnapshot) {
		ch <- receipt{code, status}
	})
	return ch
}

func waitReceipt(t *testing.T, ch <-chan receipt) receipt {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("receipt not delivered")
		return receipt{}
	}
}

func TestPrinterBuffersPrimitives(t *testing.T) {
	mock := NewMockAdapter()
	p := New(mock, epos.SeriesTMT88)

	require.NoError(t, p.BeginTransaction())
	require.NoError(t, p.AddText("Hello\n"))
	require.NoError(t, p.AddFeedLine(2))
	require.NoError(t, p.AddCut(epos.CutFeed))

	expected := append([]byte("Hello\n"), ESC, 'd', 2, GS, 'V', 65, 0)
	assert.Equal(t, expected, p.Buffered())
	assert.Empty(t, mock.Written(), "nothing is written before SendData")

	require.NoError(t, p.ClearCommandBuffer())
	assert.Empty(t, p.Buffered())
}

func TestPrinterTransaction(t *testing.T) {
	p := New(NewMockAdapter(), epos.SeriesTMT88)

	require.NoError(t, p.BeginTransaction())
	assert.ErrorIs(t, p.BeginTransaction(), ErrInTransaction)
	require.NoError(t, p.EndTransaction())
	assert.NoError(t, p.BeginTransaction())
}

func TestPrinterNotOpen(t *testing.T) {
	mock := NewMockAdapter()
	p := New(mock, epos.SeriesTMT88)
	require.NoError(t, p.Close())

	assert.ErrorIs(t, p.AddText("x"), ErrNotOpen)
	assert.ErrorIs(t, p.BeginTransaction(), ErrNotOpen)
	assert.ErrorIs(t, p.SendData(time.Second), ErrNotOpen)
	_, err := p.Status()
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.Equal(t, 1, mock.closed)
}

func TestSendDataEmptyBuffer(t *testing.T) {
	p := New(NewMockAdapter(), epos.SeriesTMT88)
	assert.ErrorIs(t, p.SendData(time.Second), ErrEmptyBuffer)
}

func TestSendDataDeliversReceipt(t *testing.T) {
	mock := NewMockAdapter()
	p := New(mock, epos.SeriesTMT88)
	ch := listen(p)

	require.NoError(t, p.AddText("receipt\n"))
	require.NoError(t, p.SendData(time.Second))

	r := waitReceipt(t, ch)
	assert.Equal(t, epos.ResultSuccess, r.code)
	require.NotNil(t, r.status)
	assert.Equal(t, epos.True, r.status.Online)
	assert.Equal(t, []byte("receipt\n"), mock.Written())
}

func TestSendDataReportsStatusFailure(t *testing.T) {
	mock := NewMockAdapter()
	mock.SetStatus(0x1A, 0x16, 0x12, 0x12)
	p := New(mock, epos.SeriesTMT88)
	ch := listen(p)

	require.NoError(t, p.AddText("x"))
	require.NoError(t, p.SendData(time.Second))

	r := waitReceipt(t, ch)
	assert.Equal(t, epos.ResultCoverOpen, r.code)
	assert.Equal(t, epos.ErrCoverOpen, epos.Classify(r.status, r.code))
}

func TestSendDataWriteFailure(t *testing.T) {
	mock := NewMockAdapter()
	p := New(mock, epos.SeriesTMT88)
	ch := listen(p)

	require.NoError(t, p.AddText("x"))
	mock.FailWrites(errors.New("broken pipe"))
	require.NoError(t, p.SendData(time.Second))

	r := waitReceipt(t, ch)
	assert.Equal(t, epos.ResultPort, r.code)
	assert.Nil(t, r.status)
}

func TestSendDataUsesListenerAtSendTime(t *testing.T) {
	mock := NewMockAdapter()
	p := New(mock, epos.SeriesTMT88)
	ch := listen(p)

	var mu sync.Mutex
	late := false
	require.NoError(t, p.AddText("x"))
	require.NoError(t, p.SendData(time.Second))
	p.SetReceiveListener(func(int, *epos.StatusSnapshot) {
		mu.Lock()
		late = true
		mu.Unlock()
	})

	waitReceipt(t, ch)
	mu.Lock()
	defer mu.Unlock()
	assert.False(t, late)
}

func TestWriteErrorCode(t *testing.T) {
	assert.Equal(t, epos.ResultPort, writeErrorCode(errors.New("reset")))
	assert.Equal(t, epos.ResultTimeout, writeErrorCode(timeoutError{}))
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestPrinterStatus(t *testing.T) {
	mock := NewMockAdapter()
	mock.SetStatus(0x12, 0x12, 0x12, 0x72)
	p := New(mock, epos.SeriesTMT88)

	s, err := p.Status()
	require.NoError(t, err)
	assert.Equal(t, epos.PaperEmpty, s.Paper)
}

func TestPrinterModelName(t *testing.T) {
	mock := NewMockAdapter()
	mock.Reply(modelNameQuery, []byte("_TM-m30\x00"))
	p := New(mock, epos.SeriesTMM30)

	name, err := p.ModelName()
	require.NoError(t, err)
	assert.Equal(t, "TM-m30", name)
}

func TestPrinterSettings(t *testing.T) {
	mock := NewMockAdapter()
	p := New(mock, epos.SeriesTMT88)

	err := p.SetPrinterSetting(time.Second, map[epos.Setting]int{
		epos.SettingPaperWidth:   80,
		epos.SettingPrintDensity: epos.ParamDefault,
		epos.SettingPrintSpeed:   epos.ParamDefault,
	})
	require.NoError(t, err)

	expected := append([]byte{}, settingEnter...)
	expected = append(expected, GS, '(', 'E', 0x04, 0x00, 0x05, 3, 6, 0)
	expected = append(expected, settingExit...)
	assert.Equal(t, expected, mock.Written())

	query, _ := encodeSettingQuery(epos.SettingPaperWidth)
	mock.Reply(query, []byte{0x37, 0x27, '2', 0x00})
	width, err := p.GetPrinterSetting(time.Second, epos.SettingPaperWidth)
	require.NoError(t, err)
	assert.Equal(t, 58, width)
}

func TestPrinterSettingsAllDefaultWritesNothing(t *testing.T) {
	mock := NewMockAdapter()
	p := New(mock, epos.SeriesTMT88)

	require.NoError(t, p.SetPrinterSetting(time.Second, map[epos.Setting]int{
		epos.SettingPrintSpeed: epos.ParamDefault,
	}))
	assert.Empty(t, mock.Written())
}

func TestAddImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 16, 2))
	for x := 0; x < 8; x++ {
		img.SetGray(x, 0, color.Gray{Y: 0})
		img.SetGray(x, 1, color.Gray{Y: 0})
	}
	for x := 8; x < 16; x++ {
		img.SetGray(x, 0, color.Gray{Y: 255})
		img.SetGray(x, 1, color.Gray{Y: 255})
	}

	p := New(NewMockAdapter(), epos.SeriesTMT88)
	require.NoError(t, p.AddImage(img, 0, 0, 16, 2))

	out := p.Buffered()
	require.Len(t, out, 8+2*2)
	assert.Equal(t, []byte{GS, 'v', '0', 0, 2, 0, 2, 0}, out[:8])
	assert.Equal(t, []byte{0xFF, 0x00, 0xFF, 0x00}, out[8:])
}

func TestAddImageScalesToPaper(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 800, 100))
	p := New(NewMockAdapter(), epos.SeriesTMM10)
	require.NoError(t, p.AddImage(img, 0, 0, 800, 100))

	out := p.Buffered()
	// 384 dots wide, height scaled proportionally
	assert.Equal(t, []byte{384 / 8, 0, 48, 0}, out[4:8])
}

func TestAddImageNil(t *testing.T) {
	p := New(NewMockAdapter(), epos.SeriesTMT88)
	assert.Error(t, p.AddImage(nil, 0, 0, 0, 0))
}

type stubDialer struct {
	adapter adapter.Adapter
	err     error
}

func (d stubDialer) Dial(epos.PrinterTarget) (adapter.Adapter, error) {
	return d.adapter, d.err
}

func TestDriverOpen(t *testing.T) {
	mock := NewMockAdapter()
	mock.open = false
	driver := NewDriver(stubDialer{adapter: mock})

	dev, err := driver.Open(epos.PrinterTarget{Address: "192.168.1.50", Series: epos.SeriesTMT88, PortType: epos.PortTCP})
	require.NoError(t, err)
	assert.True(t, mock.IsOpen())
	require.NoError(t, dev.Close())
	assert.False(t, mock.IsOpen())

	_, err = NewDriver(stubDialer{err: errors.New("no route")}).Open(epos.PrinterTarget{PortType: epos.PortTCP})
	assert.Error(t, err)
}
