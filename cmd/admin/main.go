package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"circleup/backend/internal/config"
	"circleup/backend/internal/models"
	"circleup/backend/internal/rooms"
	"circleup/backend/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	storageSvc := storage.NewStorageService(db, nil) // No redis needed for admin CLI

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <seed|rooms|members|messages> [args]")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	command := os.Args[1]

	switch command {
	case "seed":
		dir := rooms.NewDirectory(storageSvc, rooms.NewPasswordHasher(cfg.BcryptCost))
		if err := dir.SeedInitialRooms(ctx); err != nil {
			log.Fatalf("Error seeding rooms: %v", err)
		}
		fmt.Println("Seed rooms are in place.")
	case "rooms":
		if err := listRooms(ctx, storageSvc); err != nil {
			log.Fatalf("Error listing rooms: %v", err)
		}
	case "members":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin members <room_id>")
			os.Exit(1)
		}
		if err := listMembers(ctx, storageSvc, os.Args[2]); err != nil {
			log.Fatalf("Error listing members: %v", err)
		}
	case "messages":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin messages <room_id>")
			os.Exit(1)
		}
		if err := listMessages(ctx, storageSvc, os.Args[2]); err != nil {
			log.Fatalf("Error listing messages: %v", err)
		}
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func listRooms(ctx context.Context, s storage.Storage) error {
	list, err := s.ListRooms(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRIVATE\tMEMBERS\tCREATED")
	for _, r := range list {
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\n", r.RoomID, r.Name, r.IsPrivate, len(r.Members), r.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func listMembers(ctx context.Context, s storage.Storage, roomID string) error {
	room, err := s.GetRoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	for _, id := range room.Members {
		fmt.Println(id)
	}
	return nil
}

func listMessages(ctx context.Context, s storage.Storage, roomID string) error {
	msgs, err := s.GetMessages(ctx, roomID)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tSENDER\tKIND\tTEXT\tREACTIONS")
	for i := range msgs {
		m := &msgs[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", m.CreatedAt.Format(time.RFC3339), m.User.Name, kind(m.Content()), m.Text, len(m.LikedBy))
	}
	return w.Flush()
}

func kind(c models.Content) string {
	k := c.Kind()
	switch {
	case k.Has(models.KindImage):
		return "image"
	case k.Has(models.KindLocation):
		return "location"
	}
	return "text"
}
