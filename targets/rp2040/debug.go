//go:build rp2040 && debug

package main

import (
	"machine"

	"ps2kbd/core"
)

// Debug output goes to UART0 on GPIO0 (TX) and GPIO1 (RX) at 115200 baud.
// Build with -tags debug to enable it. Link traces go through the async
// queue.
func init() {
	uart := machine.UART0
	err := uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO0,
		RX:       machine.GPIO1,
	})
	if err != nil {
		return
	}
	core.SetDebugWriter(func(s string) {
		uart.Write([]byte(s))
		uart.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
	core.InitAsyncDebug()
}
