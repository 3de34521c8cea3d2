package transfer

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/javanhut/rootcas/internal/commitengine"
)

func TestRemoteListRefsAndGetRef(t *testing.T) {
	dir := t.TempDir()
	srv := newTestRepo(t, dir, "server_repo")

	source := filepath.Join(dir, "source")
	writeFile(t, filepath.Join(source, "file.txt"), "content")
	hash, err := commitengine.Commit(srv, source, "main", commitengine.Options{Message: "initial"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	serveErr := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serveErr <- err
			return
		}
		defer conn.Close()
		serveErr <- Serve(srv, conn)
	}()

	conn, err := DialTCP(ln.Addr().String())
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}

	refs, err := conn.ListRefs()
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	if refs["main"] != hash {
		t.Fatalf("ListRefs()[main] = %v, want %v", refs["main"], hash)
	}

	got, found, err := conn.GetRef("main")
	if err != nil {
		t.Fatalf("GetRef: %v", err)
	}
	if !found || got != hash {
		t.Fatalf("GetRef(main) = (%v, %v), want (%v, true)", got, found, hash)
	}

	_, found, err = conn.GetRef("nonexistent")
	if err != nil {
		t.Fatalf("GetRef(nonexistent): %v", err)
	}
	if found {
		t.Fatal("GetRef(nonexistent) should not be found")
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	<-serveErr
}

func TestRemotePullAndPush(t *testing.T) {
	dir := t.TempDir()
	srv := newTestRepo(t, dir, "server_repo")
	client := newTestRepo(t, dir, "client_repo")

	source := filepath.Join(dir, "source")
	writeFile(t, filepath.Join(source, "file.txt"), "content")
	hash, err := commitengine.Commit(srv, source, "main", commitengine.Options{Message: "initial"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	acceptAndServe := func() <-chan error {
		done := make(chan error, 1)
		go func() {
			conn, err := ln.Accept()
			if err != nil {
				done <- err
				return
			}
			defer conn.Close()
			done <- Serve(srv, conn)
		}()
		return done
	}

	served := acceptAndServe()
	conn, err := DialTCP(ln.Addr().String())
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	result, err := PullRemote(conn, client, "main", PullOptions{})
	if err != nil {
		t.Fatalf("PullRemote: %v", err)
	}
	if result.Hash != hash {
		t.Fatalf("PullRemote().Hash = %v, want %v", result.Hash, hash)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	<-served

	clientHash, err := client.Heads.Read("main")
	if err != nil {
		t.Fatalf("Read client ref: %v", err)
	}
	if clientHash != hash {
		t.Fatalf("client ref = %v, want %v", clientHash, hash)
	}

	writeFile(t, filepath.Join(source, "file.txt"), "v2")
	hash2, err := commitengine.Commit(client, source, "main", commitengine.Options{Message: "v2"})
	if err != nil {
		t.Fatalf("Commit v2 on client: %v", err)
	}

	served = acceptAndServe()
	conn2, err := DialTCP(ln.Addr().String())
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	pushResult, err := PushRemote(client, conn2, "main", PushOptions{})
	if err != nil {
		t.Fatalf("PushRemote: %v", err)
	}
	if pushResult.Hash != hash2 {
		t.Fatalf("PushRemote().Hash = %v, want %v", pushResult.Hash, hash2)
	}
	if err := conn2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	<-served

	srvHash, err := srv.Heads.Read("main")
	if err != nil {
		t.Fatalf("Read server ref: %v", err)
	}
	if srvHash != hash2 {
		t.Fatalf("server ref = %v, want %v", srvHash, hash2)
	}
}
