package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/erain9/swapbook/pkg/api"
	"github.com/erain9/swapbook/pkg/core"
	"github.com/erain9/swapbook/pkg/db/queue"
	"github.com/erain9/swapbook/pkg/messaging/kafka"
	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var errUsage = errors.New("invalid usage")

type options struct {
	grpcAddr string
	httpAddr string
	actor    string
	timeout  time.Duration
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			printUsage(os.Stderr)
			os.Exit(2)
		}
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("swapbook-client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts := options{}
	fs.StringVar(&opts.grpcAddr, "addr", "localhost:50051", "gRPC server address")
	fs.StringVar(&opts.httpAddr, "http", "localhost:8080", "HTTP server address")
	fs.StringVar(&opts.actor, "actor", os.Getenv("SWAPBOOK_ACTOR"), "Caller actor id")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	command, cmdArgs := rest[0], rest[1:]

	switch command {
	case "new-actor":
		actor, err := core.GenerateActorID()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, actor.String())
		return nil
	case "watch":
		return watch(ctx, opts, cmdArgs, out)
	}

	conn, err := grpc.NewClient(opts.grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	return execute(api.WithActor(ctx, opts.actor), api.NewClient(conn), command, cmdArgs, out)
}

// execute runs one order book command against client
func execute(ctx context.Context, client *api.Client, command string, args []string, out io.Writer) error {
	switch command {
	case "add":
		return addOrder(ctx, client, args, out)
	case "delete":
		return deleteOrder(ctx, client, args, out)
	case "modify":
		return modifyOrder(ctx, client, args, out)
	case "check":
		return checkOrders(ctx, client, args, out)
	case "state":
		return printState(ctx, client, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

// orderFlags are the order fields shared by add and modify
type orderFlags struct {
	alpha, alphaAmount, alphaLedger, alphaNetwork string
	beta, betaAmount, betaLedger, betaNetwork     string
	alphaChain, betaChain                         int64
	alphaPrice, betaPrice, slippage               string
	wallet, networkType, identity                 string
}

func (f *orderFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.alpha, "alpha", "", "Offered asset name")
	fs.StringVar(&f.alphaAmount, "alpha-amount", "", "Offered nominal amount")
	fs.StringVar(&f.alphaLedger, "alpha-ledger", "", "Offered asset ledger")
	fs.StringVar(&f.alphaNetwork, "alpha-network", "", "Offered asset network")
	fs.Int64Var(&f.alphaChain, "alpha-chain", 0, "Offered asset chain id")
	fs.StringVar(&f.beta, "beta", "", "Wanted asset name")
	fs.StringVar(&f.betaAmount, "beta-amount", "", "Wanted nominal amount")
	fs.StringVar(&f.betaLedger, "beta-ledger", "", "Wanted asset ledger")
	fs.StringVar(&f.betaNetwork, "beta-network", "", "Wanted asset network")
	fs.Int64Var(&f.betaChain, "beta-chain", 0, "Wanted asset chain id")
	fs.StringVar(&f.alphaPrice, "alpha-price", "1", "Offered asset price")
	fs.StringVar(&f.betaPrice, "beta-price", "1", "Wanted asset price")
	fs.StringVar(&f.slippage, "slippage", "0", "Accepted slippage")
	fs.StringVar(&f.wallet, "wallet", "", "Creator wallet uuid")
	fs.StringVar(&f.networkType, "network", "ORDER_SERVICE", "Creator network type")
	fs.StringVar(&f.identity, "identity", "", "Creator network identity")
}

func (f *orderFlags) validate() error {
	if f.alpha == "" || f.beta == "" || f.alphaAmount == "" || f.betaAmount == "" {
		return fmt.Errorf("%w: -alpha, -alpha-amount, -beta and -beta-amount are required", errUsage)
	}
	return nil
}

func (f *orderFlags) draft() *api.OrderDraft {
	return &api.OrderDraft{
		UserSlippage: f.slippage,
		AlphaAsset: api.Asset{
			Name:          f.alpha,
			NominalAmount: f.alphaAmount,
			Ledger:        api.Ledger{Name: f.alphaLedger, Network: f.alphaNetwork, ChainID: f.alphaChain},
		},
		BetaAsset: api.Asset{
			Name:          f.beta,
			NominalAmount: f.betaAmount,
			Ledger:        api.Ledger{Name: f.betaLedger, Network: f.betaNetwork, ChainID: f.betaChain},
		},
		AlphaAssetPrice: f.alphaPrice,
		BetaAssetPrice:  f.betaPrice,
		Creator: api.Participant{
			WalletUUID:      f.wallet,
			NetworkIdentity: api.NetworkIdentity{NetworkType: f.networkType, Identity: f.identity},
		},
	}
}

func addOrder(ctx context.Context, client *api.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var f orderFlags
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := f.validate(); err != nil {
		return err
	}

	event, err := client.AddOrder(ctx, f.draft())
	if err != nil {
		return fmt.Errorf("add order: %w", err)
	}
	printEvent(out, event)
	return nil
}

func modifyOrder(ctx context.Context, client *api.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("modify", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	id := fs.String("id", "", "Order id")
	var f orderFlags
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *id == "" {
		return fmt.Errorf("%w: -id is required", errUsage)
	}
	if err := f.validate(); err != nil {
		return err
	}

	d := f.draft()
	event, err := client.ModifyOrder(ctx, &api.Order{
		ID:              *id,
		UserSlippage:    d.UserSlippage,
		AlphaAsset:      d.AlphaAsset,
		BetaAsset:       d.BetaAsset,
		AlphaAssetPrice: d.AlphaAssetPrice,
		BetaAssetPrice:  d.BetaAssetPrice,
		Creator:         d.Creator,
	})
	if err != nil {
		return fmt.Errorf("modify order: %w", err)
	}
	printEvent(out, event)
	return nil
}

func deleteOrder(ctx context.Context, client *api.Client, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delete <order-id>", errUsage)
	}
	event, err := client.DeleteOrder(ctx, &api.DeleteOrderRequest{ID: args[0]})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	printEvent(out, event)
	return nil
}

func checkOrders(ctx context.Context, client *api.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	checkFlag := fs.Bool("flag", false, "Check flag")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if _, err := client.CheckOrders(ctx, &api.CheckOrdersRequest{Flag: *checkFlag}); err != nil {
		return fmt.Errorf("check orders: %w", err)
	}
	fmt.Fprintln(out, "Orders checked")
	return nil
}

func printEvent(out io.Writer, event *api.OrderEvent) {
	green := color.New(color.FgGreen).SprintFunc()
	switch {
	case event.Order != nil:
		fmt.Fprintf(out, "%s %s %s %s -> %s %s\n", green(event.Type), event.Order.ID,
			event.Order.AlphaAsset.NominalAmount, event.Order.AlphaAsset.Name,
			event.Order.BetaAsset.NominalAmount, event.Order.BetaAsset.Name)
	case event.ID != "":
		fmt.Fprintf(out, "%s %s\n", green(event.Type), event.ID)
	default:
		fmt.Fprintln(out, green(event.Type))
	}
}

func printState(ctx context.Context, client *api.Client, out io.Writer) error {
	resp, err := client.GetState(ctx, &api.GetStateRequest{})
	if err != nil {
		return fmt.Errorf("get state: %w", err)
	}

	cyan := color.New(color.FgCyan).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		cyan("ID"), cyan("User"), cyan("Offer"), cyan("Want"), cyan("Prices"), cyan("Slippage"), cyan("Status"))
	for _, o := range resp.Orders {
		status := green("OPEN")
		if o.IsLocked {
			status = red("LOCKED")
		}
		fmt.Fprintf(w, "%s\t%s\t%s %s\t%s %s\t%s/%s\t%s\t%s\n",
			o.ID, shorten(o.User),
			o.AlphaAsset.NominalAmount, o.AlphaAsset.Name,
			o.BetaAsset.NominalAmount, o.BetaAsset.Name,
			o.AlphaAssetPrice, o.BetaAssetPrice, o.UserSlippage, status)
	}
	return w.Flush()
}

func shorten(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:8] + ".." + id[len(id)-4:]
}

func printMatch(out io.Writer, msg *api.MatchMessage) {
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(out, "%s %s as %s: order %s <-> %s (%s %s for %s %s)\n",
		yellow("MATCH"), msg.MatchType, msg.Role, msg.N2.ID, msg.N1.ID,
		msg.N2.AlphaAsset.NominalAmount, msg.N2.AlphaAsset.Name,
		msg.N1.AlphaAsset.NominalAmount, msg.N1.AlphaAsset.Name)
}

// watch prints match notifications for the actor until ctx ends or limit
// messages were printed
func watch(ctx context.Context, opts options, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	source := fs.String("source", "ws", "Notification source (ws, kafka or sarama)")
	broker := fs.String("broker", queue.DefaultBroker, "Kafka broker address")
	topic := fs.String("topic", queue.DefaultTopic, "Kafka topic")
	group := fs.String("group", "swapbook-client", "Kafka consumer group")
	limit := fs.Int("n", 0, "Stop after n messages (0 watches forever)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	switch *source {
	case "ws":
		return watchWebSocket(ctx, "ws://"+opts.httpAddr+"/ws", opts.actor, *limit, out)
	case "kafka", "sarama":
		return watchKafka(ctx, *source, *broker, *topic, *group, opts.actor, *limit, out)
	default:
		return fmt.Errorf("%w: unknown source %q", errUsage, *source)
	}
}

func watchWebSocket(ctx context.Context, endpoint, actor string, limit int, out io.Writer) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("actor", actor)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for received := 0; limit == 0 || received < limit; {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read notification: %w", err)
		}

		var event api.OrderEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Warn().Err(err).Msg("Skipping undecodable notification")
			continue
		}
		if event.Match == nil {
			continue
		}
		printMatch(out, event.Match)
		received++
	}
	return nil
}

func watchKafka(ctx context.Context, driver, broker, topic, group, actor string, limit int, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages := make(chan *api.MatchMessage)
	handler := func(msg *api.MatchMessage) error {
		if actor != "" && !strings.EqualFold(msg.Recipient, actor) {
			return nil
		}
		select {
		case messages <- msg:
		case <-ctx.Done():
		}
		return nil
	}

	if driver == "sarama" {
		consumer, err := queue.NewQueueMessageConsumer(queue.Config{Brokers: []string{broker}, Topic: topic})
		if err != nil {
			return err
		}
		defer consumer.Close()
		go func() {
			if err := consumer.ConsumeMatchMessages(handler); err != nil {
				log.Error().Err(err).Msg("Kafka consumer stopped")
				cancel()
			}
		}()
	} else {
		reader := kafka.SetupConsumer(ctx, log.Logger, broker, topic, group, handler)
		defer reader.Close()
	}

	for received := 0; limit == 0 || received < limit; received++ {
		select {
		case msg := <-messages:
			printMatch(out, msg)
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: swapbook-client [-addr host:port] [-http host:port] [-actor 0x..] <command> [flags]")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  new-actor                                   print a fresh actor id")
	fmt.Fprintln(w, "  add -alpha X -alpha-amount N -beta Y -beta-amount M [-alpha-price P] [-beta-price P] [-slippage S]")
	fmt.Fprintln(w, "  modify -id ID <same flags as add>")
	fmt.Fprintln(w, "  delete <order-id>")
	fmt.Fprintln(w, "  check [-flag]")
	fmt.Fprintln(w, "  state")
	fmt.Fprintln(w, "  watch [-source ws|kafka|sarama] [-n N]")
	fmt.Fprintln(w, "\nExamples:")
	fmt.Fprintln(w, "  swapbook-client -actor $ALICE add -alpha ETH -alpha-amount 10 -beta VARA -beta-amount 5")
	fmt.Fprintln(w, "  swapbook-client -actor $BOB add -alpha VARA -alpha-amount 5 -beta ETH -beta-amount 10")
	fmt.Fprintln(w, "  swapbook-client -actor $BOB check")
	fmt.Fprintln(w, "  swapbook-client -actor $ALICE watch")
}
