package epos

import "encoding/json"

// Operation names on the method channel
const (
	MethodDiscovery          = "onDiscovery"
	MethodPrint              = "onPrint"
	MethodGetPrinterInfo     = "onGetPrinterInfo"
	MethodIsPrinterConnected = "isPrinterConnected"
	MethodGetPrinterSetting  = "getPrinterSetting"
	MethodSetPrinterSetting  = "setPrinterSetting"
	MethodRequestPermission  = "requestRuntimePermission"
)

// PrinterResult is the wire-facing outcome of every operation.
// A successful result never carries an error code; a failed one always
// carries both a message and an ErrorCode in Content.
type PrinterResult struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    *int   `json:"code,omitempty"`
	Content any    `json:"content,omitempty"`
}

// PrintType builds the result type for print and setting operations
func PrintType(portType string) string {
	return MethodPrint + portType
}

// Succeeded builds a successful result
func Succeeded(typ, message string, content any) PrinterResult {
	return PrinterResult{Type: typ, Success: true, Message: message, Content: content}
}

// Failed builds a failed result carrying code and its fixed message
func Failed(typ string, code ErrorCode) PrinterResult {
	return PrinterResult{Type: typ, Success: false, Message: code.Message(), Content: code}
}

// WithCode attaches the numeric device code
func (r PrinterResult) WithCode(code int) PrinterResult {
	r.Code = &code
	return r
}

// ErrorCode returns the code carried by a failed result
func (r PrinterResult) ErrorCode() (ErrorCode, bool) {
	code, ok := r.Content.(ErrorCode)
	return code, ok
}

// JSON encodes the result the way the method channel expects it
func (r PrinterResult) JSON() ([]byte, error) {
	return json.Marshal(r)
}
