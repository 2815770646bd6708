package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/TobiWan1995/statemcp"
	"github.com/TobiWan1995/statemcp/pkg/automaton"
	"github.com/TobiWan1995/statemcp/pkg/domain"
	"github.com/TobiWan1995/statemcp/pkg/ports"
)

// newDemoServer builds the bundled dungeon walkthrough. It exercises every
// artifact kind: tools drive the walk, a map resource is readable at the
// crossroad, and a farewell prompt concludes the session.
func newDemoServer(logger *slog.Logger, store ports.SessionStore, opts ...statemcp.Option) *statemcp.Server {
	opts = append([]statemcp.Option{statemcp.WithLogger(logger), statemcp.WithStore(store)}, opts...)
	srv := statemcp.New("crossroads-demo", opts...)

	srv.Tools().Register(
		domain.Tool{Name: "open_door", Description: "Open the entry door"},
		func(ctx context.Context, args map[string]any) (any, error) {
			return "The door creaks open. You stand at a crossroad.", nil
		})
	srv.Tools().Register(
		domain.Tool{Name: "press_button", Description: "Press the mysterious button"},
		func(ctx context.Context, args map[string]any) (any, error) {
			return "Nothing happens. The button clicks back.", nil
		})
	srv.Tools().Register(
		domain.Tool{Name: "choose_left_path", Description: "Take the left corridor"},
		func(ctx context.Context, args map[string]any) (any, error) {
			return "You walk into the dark left corridor and face a locked door.", nil
		})
	srv.Tools().Register(
		domain.Tool{Name: "go_back", Description: "Retreat to the crossroad"},
		func(ctx context.Context, args map[string]any) (any, error) {
			return "You retreat to the crossroad.", nil
		})
	srv.Tools().Register(
		domain.Tool{
			Name:        "open_door_with_key",
			Description: "Unlock the final door. Requires the right key.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key": map[string]any{
						"type":        "string",
						"description": "The key to try",
					},
				},
				"required": []string{"key"},
			},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			if key, _ := args["key"].(string); key == "gold" {
				return "The lock clicks. The treasury lies before you.", nil
			}
			return nil, errors.New("the key does not fit the lock")
		})

	srv.Resources().Register(
		domain.Resource{
			URI:         "dungeon://map",
			Name:        "Dungeon map",
			Description: "A rough map of the crossroad and its corridors",
			MIMEType:    "text/plain",
		},
		func(ctx context.Context) (*domain.ResourceContents, error) {
			return &domain.ResourceContents{
				URI:      "dungeon://map",
				MIMEType: "text/plain",
				Text:     "entry -> crossroad -> left corridor -> treasury",
			}, nil
		})

	srv.Prompts().Register(
		domain.Prompt{
			Name:        "ask_guide",
			Description: "Ask the dungeon guide for advice",
			Arguments:   []domain.PromptArgument{{Name: "topic", Description: "What to ask about", Required: true}},
		},
		func(ctx context.Context, args map[string]string) (*domain.PromptResult, error) {
			return &domain.PromptResult{
				Description: "Guide's advice",
				Messages: []domain.PromptMessage{
					{Role: domain.RoleUser, Text: "Tell me about " + args["topic"] + " in this dungeon."},
				},
			}, nil
		})

	srv.Automaton().
		DefineState("entry", automaton.Initial()).
		OnTool("open_door").
		OnSuccess("crossroad", automaton.WithEffects(srv.ArtifactsChanged())).
		BuildEdge().
		BuildState().
		DefineState("crossroad").
		OnTool("press_button").
		OnSuccess("crossroad").
		BuildEdge().
		OnTool("choose_left_path").
		OnSuccess("left_door", automaton.WithEffects(srv.ArtifactsChanged())).
		BuildEdge().
		OnResource("dungeon://map").
		OnSuccess("crossroad").
		BuildEdge().
		OnPrompt("ask_guide").
		OnSuccess("crossroad").
		BuildEdge().
		BuildState().
		DefineState("left_door").
		OnTool("open_door_with_key").
		OnSuccess("treasury", automaton.Terminal()).
		OnError("rollback_left").
		BuildEdge().
		BuildState().
		DefineState("rollback_left").
		OnTool("go_back").
		OnSuccess("crossroad", automaton.WithEffects(srv.ArtifactsChanged())).
		BuildEdge().
		BuildState().
		DefineState("treasury").
		BuildState()

	return srv
}
