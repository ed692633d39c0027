package cli

import (
	"context"
	"log"
	"os"
)

func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	password, err := GetPassword(os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	if err := a.session.Login(ctx, email, password); err != nil {
		log.Printf("Login unsuccessful: %s", err.Error())
		return err
	}

	user, _ := a.session.Current()
	log.Printf("Logged in as %s", user.Name)
	return nil
}

func (a *App) Register(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Enter display name", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	email, err := GetSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	username, err := GetSimpleText(a.reader, "Enter username (empty to derive from email)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	password, err := GetPassword(os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	if err := a.session.Register(ctx, name, email, password, username); err != nil {
		log.Printf("Registration unsuccessful: %s", err.Error())
		return err
	}

	user, _ := a.session.Current()
	log.Printf("Registered and logged in as %s", user.Name)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.session.Logout(ctx)
	log.Println("Logged out")
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	user, ok := a.session.Current()
	if !ok {
		printlnFn("Not logged in")
		return nil
	}
	printlnFn(user.Name, "<"+user.Email+">")
	return nil
}
