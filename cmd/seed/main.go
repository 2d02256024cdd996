package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"signal-relay/internal/config"
	"signal-relay/internal/database"
	"signal-relay/internal/models"
	"signal-relay/internal/repositories/postgres"
	"signal-relay/internal/services"
)

// demo accounts, all with password 123456
var demoUsers = []models.RegisterRequest{
	{Username: "alice", Phone: "+10000000001", Password: "123456"},
	{Username: "bob", Phone: "+10000000002", Password: "123456"},
	{Username: "charlie", Phone: "+10000000003", Password: "123456"},
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting database seeding...")

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	userRepo := postgres.NewUserRepository(db)
	userService := services.NewUserService(userRepo, cfg.JWT.Secret, cfg.JWT.ExpirationTime)
	chatService := services.NewChatService(postgres.NewChatRepository(db), postgres.NewMessageRepository(db), userRepo, nil)

	slog.Info("Creating demo users...")
	ids := make([]uint, 0, len(demoUsers))
	for i := range demoUsers {
		req := demoUsers[i]
		user, err := userService.Register(ctx, &req)
		switch {
		case err == nil:
			slog.Info("Created user", "username", user.Username, "id", user.ID)
			ids = append(ids, user.ID)
		case errors.Is(err, services.ErrUserAlreadyExists):
			existing, findErr := userRepo.FindByPhone(ctx, req.Phone)
			if findErr != nil {
				slog.Error("Failed to load existing user", "phone", req.Phone, "error", findErr)
				os.Exit(1)
			}
			slog.Info("User already exists", "username", existing.Username, "id", existing.ID)
			ids = append(ids, existing.ID)
		default:
			slog.Error("Failed to create user", "username", req.Username, "error", err)
			os.Exit(1)
		}
	}

	existingChats, err := chatService.ListChats(ctx, ids[0])
	if err != nil {
		slog.Error("Failed to list chats", "error", err)
		os.Exit(1)
	}
	if len(existingChats) > 0 {
		slog.Info("Chats already seeded, skipping")
		return
	}

	slog.Info("Creating demo chats...")
	groupName := "Demo group"
	group, err := chatService.CreateChat(ctx, &models.CreateChatRequest{Participants: ids, IsGroup: true, Name: &groupName})
	if err != nil {
		slog.Error("Failed to create group chat", "error", err)
		os.Exit(1)
	}
	direct, err := chatService.CreateChat(ctx, &models.CreateChatRequest{Participants: ids[:2]})
	if err != nil {
		slog.Error("Failed to create direct chat", "error", err)
		os.Exit(1)
	}

	// Real clients send ciphertext; the server stores content as-is.
	samples := []struct {
		chatID  uint
		sender  uint
		content string
	}{
		{group.ID, ids[0], "Welcome to the demo group!"},
		{group.ID, ids[1], "Hi everyone!"},
		{direct.ID, ids[1], "Hey Alice, call me when you are free."},
	}
	for _, s := range samples {
		if _, err := chatService.CreateMessage(ctx, s.chatID, s.sender, s.content, models.MessageTypeText, 0); err != nil {
			slog.Warn("Failed to create sample message", "chatID", s.chatID, "error", err)
		}
	}

	slog.Info("Database seeding completed successfully!", "groupChat", group.ID, "directChat", direct.ID)
}
