// Package main uploads a survey file and prints its pipeline stage events.
//
//	go run ./scripts survey.xlsx
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type stageEvent struct {
	UploadID string         `json:"upload_id"`
	Stage    string         `json:"stage"`
	At       string         `json:"at"`
	Data     map[string]any `json:"data"`
}

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <survey-file>", filepath.Base(os.Args[0]))
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/events/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("ws dial: %v", err)
	}
	defer conn.Close()

	var ack wsMessage
	if err := conn.ReadJSON(&ack); err != nil || ack.Type != "connection_ack" {
		log.Fatalf("no ack: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type != "stage" {
				continue
			}
			var evt stageEvent
			_ = json.Unmarshal(msg.Payload, &evt)
			fmt.Printf("%s %-20s %v\n", evt.At, evt.Stage, evt.Data)
			if evt.Stage == "idle" {
				return
			}
		}
	}()

	body, ctype, err := multipartFile(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	resp, err := http.Post(base+"/v1/trees/upload", ctype, body)
	if err != nil {
		log.Fatalf("upload: %v", err)
	}
	out, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	fmt.Printf("upload: %s %s\n", resp.Status, out)

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Println("timed out waiting for events")
	}
}

func multipartFile(path string) (io.Reader, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
