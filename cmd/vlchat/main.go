package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/genserve/internal/chat"
	"github.com/dmorgan81/genserve/internal/log"
	"github.com/dmorgan81/genserve/internal/param"
	"github.com/samber/lo"
)

type imageFlags []string

func (f *imageFlags) String() string     { return strings.Join(*f, ",") }
func (f *imageFlags) Set(v string) error { *f = append(*f, v); return nil }

func main() {
	var images imageFlags
	client := chat.NewClient(chat.DefaultEndpoint)
	flag.StringVar(&client.Endpoint, "endpoint", lo.CoalesceOrEmpty(os.Getenv("VLCHAT_ENDPOINT"), chat.DefaultEndpoint), "OpenAI-compatible server URL")
	flag.StringVar(&client.APIKey, "api-key", os.Getenv("VLCHAT_API_KEY"), "bearer token, if the server wants one")
	keyParam := flag.String("api-key-param", os.Getenv("VLCHAT_API_KEY_PARAM"), "SSM parameter holding the bearer token")
	flag.StringVar(&client.Model, "model", chat.DefaultModel, "model name")
	flag.IntVar(&client.MaxTokens, "max-tokens", chat.DefaultMaxTokens, "maximum tokens to generate")
	flag.Float64Var(&client.Temperature, "temperature", chat.DefaultTemperature, "sampling temperature")
	flag.Float64Var(&client.TopP, "top-p", chat.DefaultTopP, "nucleus sampling threshold")
	flag.Var(&images, "image", "image to ask about; repeat for several")
	health := flag.Bool("health", false, "check the server and exit")
	verbose := flag.Bool("v", false, "log requests to stderr")
	flag.Parse()

	ctx := context.Background()
	if *verbose {
		ctx = log.NewContext(ctx, log.New(os.Stderr))
	}

	if client.APIKey == "" && *keyParam != "" {
		key, err := fetchKey(ctx, *keyParam)
		if err != nil {
			fail(fmt.Sprintf("Error: %v", err))
		}
		client.APIKey = key
	}

	if *health {
		if err := client.Health(ctx); err != nil {
			fail(chat.Explain(err, client.Endpoint))
		}
		fmt.Println("Model is healthy!")
		return
	}

	question := strings.Join(flag.Args(), " ")
	if len(images) > 0 {
		if question == "" {
			question = lo.Ternary(len(images) == 1,
				"Describe this image in detail.",
				"Compare these images and identify their similarities and differences.")
		}
		urls := make([]string, 0, len(images))
		for _, path := range images {
			url, err := chat.ImageFileDataURL(path)
			if err != nil {
				fail(fmt.Sprintf("Error: %v", err))
			}
			urls = append(urls, url)
		}
		reply, err := client.Describe(ctx, question, urls...)
		if err != nil {
			fail(chat.Explain(err, client.Endpoint))
		}
		fmt.Println(reply)
		return
	}

	conv := chat.NewConversation(client)
	if question != "" {
		reply, err := conv.Send(ctx, question)
		if err != nil {
			fail(chat.Explain(err, client.Endpoint))
		}
		fmt.Println(reply)
		return
	}
	repl(ctx, conv, client.Endpoint)
}

// repl runs a text chat on stdin. "/clear" forgets the history.
func repl(ctx context.Context, conv *chat.Conversation, endpoint string) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for fmt.Print("> "); scanner.Scan(); fmt.Print("> ") {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/clear":
			conv.Clear()
			fmt.Println("(history cleared)")
			continue
		}

		reply, err := conv.Send(ctx, line)
		if err != nil {
			fmt.Fprintln(os.Stderr, chat.Explain(err, endpoint))
			continue
		}
		fmt.Println(reply)
	}
}

func fetchKey(ctx context.Context, path string) (string, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", err
	}
	return param.Resolve(ctx, param.FromClient(ssm.NewFromConfig(cfg)), "", path)
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
