// Command orderctl is a minimal CLI client for the exchange gateway
// (cmd/exchange). Grounded on the teacher's cmd/client/client.go: flag
// parsing for owner/side/type/price/qty, a persistent connection, and a
// background goroutine printing reports as they arrive — ported from
// the teacher's fixed-width binary wire format to the gateway's
// line-delimited JSON.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"github.com/google/uuid"

	"matchcore/internal/domain"
	netgw "matchcore/internal/net"
)

func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the exchange gateway")
	owner := flag.String("owner", "", "owner client id (required)")
	action := flag.String("action", "place", "action: place | cancel | peek")
	symbol := flag.String("symbol", "AAPL", "symbol")
	sideFlag := flag.String("side", "buy", "buy | sell")
	typeFlag := flag.String("type", "limit", "limit | market")
	price := flag.Float64("price", 100.0, "limit price")
	qty := flag.Uint64("qty", 10, "quantity")
	orderID := flag.String("id", "", "order id, for -action cancel")
	flag.Parse()

	if *owner == "" && *action != "peek" {
		fmt.Fprintln(os.Stderr, "error: -owner is required")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()

	go printReports(conn)

	side := domain.Buy
	if strings.EqualFold(*sideFlag, "sell") {
		side = domain.Sell
	}
	orderType := domain.Limit
	if strings.EqualFold(*typeFlag, "market") {
		orderType = domain.Market
	}

	var req netgw.Request
	switch strings.ToLower(*action) {
	case "place":
		req = netgw.Request{
			Type:      netgw.MessageNewOrder,
			Symbol:    *symbol,
			Side:      side,
			OrderType: orderType,
			Quantity:  *qty,
			Owner:     *owner,
		}
		if orderType == domain.Limit {
			req.Price = price
		}
	case "cancel":
		id, err := parseUUID(*orderID)
		if err != nil {
			log.Fatalf("invalid -id: %v", err)
		}
		req = netgw.Request{Type: netgw.MessageCancelOrder, Symbol: *symbol, OrderID: id}
	case "peek":
		req = netgw.Request{Type: netgw.MessagePeekBook, Symbol: *symbol}
	default:
		log.Fatalf("unknown action %q", *action)
	}

	if err := send(conn, req); err != nil {
		log.Fatalf("send failed: %v", err)
	}

	fmt.Println("listening for reports... (ctrl-c to exit)")
	select {}
}

func send(conn net.Conn, req netgw.Request) error {
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = conn.Write(b)
	return err
}

func printReports(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var report netgw.Report
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			log.Printf("malformed report: %v", err)
			continue
		}
		switch report.Type {
		case netgw.ReportExecution:
			fmt.Printf("[EXECUTION] %+v\n", report.Trade)
		case netgw.ReportBook:
			fmt.Printf("[BOOK] %s bid=%v ask=%v depth=%d\n", report.Symbol, report.BestBid, report.BestAsk, report.Depth)
		case netgw.ReportError:
			fmt.Printf("[ERROR] %s\n", report.Error)
		}
	}
}
