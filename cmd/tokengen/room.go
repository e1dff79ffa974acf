package main

import (
	"fmt"

	"github.com/dkeye/StudyRoom/internal/adapters/store"
	"github.com/dkeye/StudyRoom/internal/config"
	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Create or delete rooms in the configured database",
	}
	cmd.AddCommand(newRoomCreateCmd(), newRoomDeleteCmd())
	return cmd
}

func openStore() (*store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.DatabasePath, store.Options{
		AutoCreateRooms: cfg.AutoCreateRooms,
		RecentMessages:  cfg.RecentMessages,
	})
}

func newRoomCreateCmd() *cobra.Command {
	var id, name, owner string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a room",
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := domain.ParseRoomID(id)
			if err != nil {
				return err
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.CreateRoom(cmd.Context(), room, name, owner); err != nil {
				return err
			}
			log.Info().Str("module", "tokengen").Str("room", string(room)).Str("owner", owner).Msg("room created")
			fmt.Fprintln(cmd.OutOrStdout(), room)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "room id (required)")
	cmd.Flags().StringVar(&name, "name", "", "room name")
	cmd.Flags().StringVar(&owner, "owner", "", "owner user id (required)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newRoomDeleteCmd() *cobra.Command {
	var id, owner string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a room and its members, messages and countdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := domain.ParseRoomID(id)
			if err != nil {
				return err
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeleteRoom(cmd.Context(), room, domain.UserID(owner)); err != nil {
				return fmt.Errorf("delete room %s: %w", room, err)
			}
			log.Info().Str("module", "tokengen").Str("room", string(room)).Msg("room deleted")
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "room id (required)")
	cmd.Flags().StringVar(&owner, "owner", "", "user id requesting the delete (required)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
