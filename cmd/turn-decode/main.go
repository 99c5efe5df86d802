// Command turn-decode prints the decoded form of a base64-encoded STUN
// message or channel-data frame, for inspecting captured TURN traffic.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"

	stun "github.com/cydev/turnd"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", "turn-decode")
		fmt.Fprintln(os.Stderr, "turn-decode AAEAHCESpEJML0JTQWsyVXkwcmGALwAWaHR0cDovL2xvY2FsaG9zdDozMDAwLwAA")
		fmt.Fprintln(os.Stderr, "First argument must be a base64.StdEncoding-encoded datagram")
		flag.PrintDefaults()
	}
	flag.Parse()

	data, err := base64.StdEncoding.DecodeString(flag.Arg(0))
	if err != nil {
		log.Fatalln("unable to decode base64 value:", err)
	}
	if len(data) == 0 {
		log.Fatalln("empty input")
	}

	if data[0] <= 0x03 {
		decodeMessage(data)
		return
	}
	decodeChannelData(data)
}

func decodeMessage(data []byte) {
	m := new(stun.Message)
	m.Raw = data
	if err := m.Decode(); err != nil {
		log.Fatalln("unable to decode message:", err)
	}
	fmt.Printf("%s transaction=%x length=%d\n", m.Type, m.TransactionID, m.Length)
	for _, a := range m.Attributes {
		fmt.Printf("  %s (len=%d): %x\n", a.Type, a.Length, a.Value)
	}
}

func decodeChannelData(data []byte) {
	cd, err := stun.NewChannelData(data)
	if err != nil {
		log.Fatalln("unable to decode channel-data:", err)
	}
	fmt.Printf("channel=0x%04x data=%x\n", cd.ChannelNumber, cd.Data)
}
