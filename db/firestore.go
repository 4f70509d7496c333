package db

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"google.golang.org/api/option"
)

// ErrNoCredentials is returned when no service account is configured. The
// remote archive is optional, so callers treat it as "disabled".
var ErrNoCredentials = errors.New("firebase credentials not configured")

// FirestoreClient is a singleton Firestore client instance.
var (
	client     *firestore.Client
	clientErr  error
	clientOnce sync.Once
)

// InitFirestore initializes and returns a Firestore client from base64
// encoded service account JSON.
func InitFirestore(ctx context.Context, encodedCreds string) (*firestore.Client, error) {
	if encodedCreds == "" {
		return nil, ErrNoCredentials
	}
	clientOnce.Do(func() {
		// Decode credentials
		creds, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			clientErr = fmt.Errorf("decode firestore credentials: %w", err)
			return
		}

		// Initialize Firebase App
		opt := option.WithCredentialsJSON(creds)
		app, err := firebase.NewApp(ctx, nil, opt)
		if err != nil {
			clientErr = fmt.Errorf("initialize firebase app: %w", err)
			return
		}

		// Get Firestore Client
		client, err = app.Firestore(ctx)
		if err != nil {
			clientErr = fmt.Errorf("get firestore client: %w", err)
		}
	})

	return client, clientErr
}

// CloseFirestore closes the Firestore client.
func CloseFirestore() {
	if client != nil {
		client.Close()
	}
}
