package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// Stream audio in chunks to simulate real-time streaming
// At 16kHz 16-bit mono = 32000 bytes/second
// 100ms chunks = 3200 bytes
const chunkSize = 3200
const chunkIntervalMs = 100

type serverMessage struct {
	Type       string  `json:"type"`
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	SessionID  string  `json:"session_id,omitempty"`
	Audio      string  `json:"audio,omitempty"`
	Message    string  `json:"message,omitempty"`
}

func main() {
	audioFile := flag.String("audio", "../../testdata/sample-16khz.wav", "Path to WAV file (16kHz 16-bit mono)")
	serverURL := flag.String("server", "ws://localhost:8080/ws/voice", "Voice WebSocket URL")
	level := flag.String("level", "intermediate", "Learner level (beginner/intermediate/advanced)")
	topic := flag.String("topic", "free_talk", "Conversation topic")
	userID := flag.String("user", "audioclient-"+time.Now().Format("150405"), "User ID")
	flag.Parse()

	// Open audio file
	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	// Read and validate WAV header
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}

	// Validate it's a WAV file
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal("Not a valid WAV file")
	}

	// Extract audio format info
	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])

	log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		audioFormat, numChannels, sampleRate, bitsPerSample)

	if audioFormat != 1 { // PCM
		log.Fatal("Only PCM format supported")
	}
	if sampleRate != 16000 {
		log.Printf("Warning: Sample rate is %d Hz, expected 16000 Hz", sampleRate)
	}

	// Connect to the voice WebSocket
	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", *serverURL)

	// Print server events while we stream
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg serverMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			switch msg.Type {
			case "session_started":
				log.Printf("Session started: %s", msg.SessionID)
			case "final_transcript":
				log.Printf("You said: %q (confidence=%.2f)", msg.Text, msg.Confidence)
			case "feedback":
				log.Printf("Agent: %s", msg.Text)
			case "audio":
				log.Printf("Received %d bytes of synthesized audio (base64)", len(msg.Audio))
			case "error":
				log.Printf("Server error: %s", msg.Message)
			}
		}
	}()

	// Initialize the practice session
	initMsg := map[string]string{
		"type":    "init",
		"level":   *level,
		"topic":   *topic,
		"user_id": *userID,
	}
	if err := conn.WriteJSON(initMsg); err != nil {
		log.Fatalf("Failed to send init: %v", err)
	}

	log.Printf("Streaming audio: user=%s level=%s topic=%s", *userID, *level, *topic)

	// Stream audio in chunks
	audioChunk := make([]byte, chunkSize)
	var totalBytes int64
	var chunkNum int
	startTime := time.Now()

	for {
		n, err := f.Read(audioChunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read audio: %v", err)
		}

		chunkNum++
		totalBytes += int64(n)

		if err := conn.WriteMessage(websocket.BinaryMessage, audioChunk[:n]); err != nil {
			log.Fatalf("Failed to send frame: %v", err)
		}

		if chunkNum%10 == 0 {
			log.Printf("Sent chunk %d (%d bytes total)", chunkNum, totalBytes)
		}

		// Simulate real-time streaming
		time.Sleep(chunkIntervalMs * time.Millisecond)
	}

	elapsed := time.Since(startTime)
	log.Printf("Finished streaming: %d chunks, %d bytes in %v", chunkNum, totalBytes, elapsed)

	// Leave time for trailing transcripts and audio, then stop
	time.Sleep(2 * time.Second)

	log.Println("Stopping session...")
	if err := conn.WriteJSON(map[string]string{"type": "stop"}); err != nil {
		log.Fatalf("Failed to send stop: %v", err)
	}

	time.Sleep(500 * time.Millisecond)
	log.Println("Done")
}
