package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"otp-auth/internal/client"
	"otp-auth/internal/config"
	"otp-auth/internal/domain"
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadClientConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	store, err := client.OpenSQLiteSessionStore(ctx, cfg.SessionDB)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	var location string
	manager := client.NewSessionManager(client.Options{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.Timeout,
		Store:   store,
		Logger:  logger,
		Navigator: client.NavigatorFunc(func(path string) {
			location = path
			fmt.Printf("-> %s\n", path)
		}),
	})
	manager.Bootstrap(ctx)

	if manager.State().IsAuthenticated {
		location = client.PathDashboard
		fmt.Println("Sesion restaurada.")
	} else {
		location = client.PathLogin
	}

	for {
		fmt.Printf("\n===== Auth CLI (%s) =====\n", location)
		fmt.Println("[1] Registrarse")
		fmt.Println("[2] Login (pedir OTP)")
		fmt.Println("[3] Verificar OTP")
		fmt.Println("[4] Ver perfil")
		fmt.Println("[5] Logout")
		fmt.Println("[6] Borrar cuenta")
		fmt.Println("[7] Estado")
		fmt.Println("[8] Salir")
		fmt.Print("Selecciona una opcion: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		switch strings.TrimSpace(line) {
		case "1":
			req, err := registerForm(reader)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			msg, err := manager.Register(ctx, req)
			report(msg, err)
		case "2":
			email := prompt(reader, "Email")
			password := prompt(reader, "Password")
			msg, err := manager.Login(ctx, email, password)
			report(msg, err)
		case "3":
			email := emailFromLocation(location)
			if email == "" {
				email = prompt(reader, "Email")
			}
			code := prompt(reader, "OTP")
			err := manager.VerifyOTP(ctx, email, code)
			report("Sesion iniciada.", err)
		case "4":
			if !guard(manager) {
				continue
			}
			user, err := manager.Profile(ctx)
			if err != nil {
				report("", err)
				continue
			}
			printUser(user, manager.ProfileImageURL())
		case "5":
			manager.Logout(ctx)
			fmt.Println("Sesion cerrada.")
		case "6":
			if !guard(manager) {
				continue
			}
			if !strings.EqualFold(prompt(reader, "Confirmar borrado [s/N]"), "s") {
				continue
			}
			msg, err := manager.DeleteAccount(ctx)
			report(msg, err)
		case "7":
			st := manager.State()
			fmt.Printf("Autenticado: %v\n", st.IsAuthenticated)
			if st.User != nil {
				printUser(*st.User, manager.ProfileImageURL())
			}
			if st.Error != "" {
				fmt.Printf("Ultimo error: %s\n", st.Error)
			}
		case "8":
			return
		default:
			fmt.Println("Opcion invalida.")
		}
	}
}

// guard replica la ruta protegida: sin sesion manda a login.
func guard(m *client.SessionManager) bool {
	if m.State().IsAuthenticated {
		return true
	}
	fmt.Println("No hay sesion activa.")
	fmt.Printf("-> %s\n", client.PathLogin)
	return false
}

func registerForm(reader *bufio.Reader) (client.RegisterRequest, error) {
	req := client.RegisterRequest{
		Name:        prompt(reader, "Nombre"),
		Email:       prompt(reader, "Email"),
		Password:    prompt(reader, "Password"),
		Company:     prompt(reader, "Empresa (opcional)"),
		DateOfBirth: prompt(reader, "Fecha de nacimiento YYYY-MM-DD (opcional)"),
	}
	if raw := prompt(reader, "Edad (opcional)"); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil {
			return req, errors.New("la edad debe ser un numero")
		}
		req.Age = &age
	}
	if path := prompt(reader, "Ruta de imagen de perfil (opcional)"); path != "" {
		img, err := openImage(path)
		if err != nil {
			return req, err
		}
		req.Image = img
	}
	return req, nil
}

// openImage detecta el tipo por contenido; el backend vuelve a validarlo.
func openImage(path string) (*client.ImageFile, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("leer imagen: %w", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("leer imagen: %w", err)
	}
	return &client.ImageFile{
		Name:        filepath.Base(path),
		ContentType: mt.String(),
		Size:        int64(len(content)),
		Content:     bytes.NewReader(content),
	}, nil
}

func emailFromLocation(location string) string {
	_, query, ok := strings.Cut(location, "?email=")
	if !ok {
		return ""
	}
	email, err := url.QueryUnescape(query)
	if err != nil {
		return ""
	}
	return email
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Printf("%s: ", label)
	text, _ := reader.ReadString('\n')
	return strings.TrimSpace(text)
}

func report(msg string, err error) {
	if err != nil {
		var formErr *client.FormError
		if errors.As(err, &formErr) {
			fmt.Printf("Formulario invalido: %s\n", formErr.Message)
			return
		}
		fmt.Printf("Error: %v\n", err)
		return
	}
	if msg != "" {
		fmt.Println(msg)
	}
}

func printUser(u domain.UserView, imageURL string) {
	fmt.Printf("ID: %s\nNombre: %s\nEmail: %s\n", u.ID, u.Name, u.Email)
	if u.Company != nil {
		fmt.Printf("Empresa: %s\n", *u.Company)
	}
	if u.Age != nil {
		fmt.Printf("Edad: %d\n", *u.Age)
	}
	if u.DateOfBirth != nil {
		fmt.Printf("Nacimiento: %s\n", u.DateOfBirth.Format("2006-01-02"))
	}
	if imageURL != "" {
		fmt.Printf("Imagen: %s\n", imageURL)
	}
	fmt.Printf("Miembro desde: %s\n", u.CreatedAt.Format("2006-01-02"))
}
