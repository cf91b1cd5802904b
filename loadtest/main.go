package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	BaseURL   = "http://localhost:8080"
	WSURL     = "ws://localhost:8080/ws/chat"
	PairCount = 200 // Pairs of users chatting 1:1
	MsgCount  = 20  // Messages per user
)

type AuthResponse struct {
	Token    string `json:"access_token"`
	ID       int    `json:"id"`
	Username string `json:"username"`
}

func main() {
	log.Printf("starting load test: %d users, %d messages each", PairCount*2, MsgCount)
	var wg sync.WaitGroup

	for i := 0; i < PairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID)
		}(i)
	}

	wg.Wait()
	log.Println("load test complete")
}

func runPair(pairID int) {
	userA := fmt.Sprintf("u_%d_a", pairID)
	userB := fmt.Sprintf("u_%d_b", pairID)
	pass := "password123"

	tokenA, idA := authenticate(userA, pass)
	tokenB, idB := authenticate(userB, pass)
	if tokenA == "" || tokenB == "" {
		return
	}

	// The chat gate requires an accepted contact relationship.
	if !makeContacts(tokenA, tokenB, idB) {
		log.Printf("contact setup failed for pair %d", pairID)
		return
	}

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go spamChat(&wsWg, tokenA, idB, userA)
	go spamChat(&wsWg, tokenB, idA, userB)
	wsWg.Wait()
}

// authenticate registers (ignoring "already exists") and logs in.
func authenticate(username, password string) (string, int) {
	postJSON("/register", "", map[string]string{"username": username, "password": password})

	resp, err := postJSON("/login", "", map[string]string{"username": username, "password": password})
	if err != nil {
		log.Printf("login failed [%s]: %v", username, err)
		return "", 0
	}
	defer resp.Body.Close()

	var data AuthResponse
	json.NewDecoder(resp.Body).Decode(&data)
	return data.Token, data.ID
}

// makeContacts sends a request from A to B and accepts it as B.
func makeContacts(tokenA, tokenB string, idB int) bool {
	if _, err := postJSON("/api/contacts/requests", tokenA, map[string]int{"target_id": idB}); err != nil {
		return false
	}

	req, _ := http.NewRequest("GET", BaseURL+"/api/contacts/requests", nil)
	req.Header.Set("Authorization", "Bearer "+tokenB)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	var pending []struct {
		ID int `json:"id"`
	}
	json.NewDecoder(resp.Body).Decode(&pending)

	for _, p := range pending {
		accept, _ := http.NewRequest("POST", fmt.Sprintf("%s/api/contacts/requests/%d/accept", BaseURL, p.ID), nil)
		accept.Header.Set("Authorization", "Bearer "+tokenB)
		if r, err := http.DefaultClient.Do(accept); err == nil {
			r.Body.Close()
		}
	}
	return len(pending) > 0
}

func spamChat(wg *sync.WaitGroup, token string, contactID int, username string) {
	defer wg.Done()

	url := fmt.Sprintf("%s/%d?token=%s", WSURL, contactID, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Printf("ws connect failed [%s]: %v", username, err)
		return
	}
	defer conn.Close()

	for i := 0; i < MsgCount; i++ {
		msg := map[string]string{
			"type":    "chat_message",
			"message": fmt.Sprintf("load test message %d from %s", i, username),
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("send failed [%s]: %v", username, err)
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	log.Printf("%s finished sending %d messages", username, MsgCount)
}

func postJSON(endpoint, token string, data any) (*http.Response, error) {
	jsonData, _ := json.Marshal(data)
	req, _ := http.NewRequest("POST", BaseURL+endpoint, bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return http.DefaultClient.Do(req)
}
