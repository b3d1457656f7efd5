package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/cartledger/internal/app"
	"github.com/yungbote/cartledger/internal/data/aggregates"
	"github.com/yungbote/cartledger/internal/domain/carts"
	"github.com/yungbote/cartledger/internal/platform/envutil"
	"github.com/yungbote/cartledger/internal/platform/logger"
)

func main() {
	os.Exit(start(os.Args[1:]))
}

// start returns the process exit code so every deferred close runs before
// main exits.
func start(args []string) int {
	fs := flag.NewFlagSet("cartledger", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to cartledger.yaml")
	reset := fs.Bool("reset", true, "purge existing carts and items before the demo")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	log, err := logger.New(envutil.String("LOG_MODE", "development", nil))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	cfg, path, err := app.LoadConfig(*configPath, log)
	if err != nil {
		log.Error("Config load failed", "error", err, "path", path)
		return 1
	}
	if path != "" {
		log.Info("Loaded config", "path", path)
	}

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("App init failed", "error", err)
		return 1
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *reset {
		if err := purgeAll(ctx, a.Carts); err != nil {
			log.Error("Reset failed", "error", err)
			return 1
		}
	}
	if err := run(ctx, a.Carts); err != nil {
		log.Error("Demo failed", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, repo *aggregates.Repository) error {
	fmt.Println("--- 1. CREATE ---")
	cartRefs := make([]*carts.Cart, 0, 3)
	for i := 1; i <= 3; i++ {
		c, err := repo.CreateCart(ctx, fmt.Sprintf("Cart %d", i))
		if err != nil {
			return err
		}
		cartRefs = append(cartRefs, c)
	}
	itemRefs := make([]*carts.Item, 0, 6)
	for i := 1; i <= 6; i++ {
		it, err := repo.CreateItem(ctx, fmt.Sprintf("Item %d", i))
		if err != nil {
			return err
		}
		itemRefs = append(itemRefs, it)
	}
	if err := printState(ctx, repo, "After initial creation"); err != nil {
		return err
	}

	fmt.Println("--- 2. ASSIGN ITEMS ---")
	cart1, cart2, cart3 := cartRefs[0], cartRefs[1], cartRefs[2]
	label1, label2 := cart1.LabelOr(""), cart2.LabelOr("")
	steps := []struct {
		cart  *carts.Cart
		label *string
		items *carts.ItemSet
	}{
		{cart1, &label1, carts.NewItemSet(itemRefs[0], itemRefs[1], itemRefs[2])},
		{cart2, &label2, carts.NewItemSet(itemRefs[3], itemRefs[4])},
		{cart1, &label1, carts.NewItemSet(itemRefs[0], itemRefs[1])},
	}
	for _, s := range steps {
		if _, err := repo.UpdateCart(ctx, s.cart.ID, s.label, s.items); err != nil {
			return err
		}
	}
	if err := printState(ctx, repo, "After updating relationships"); err != nil {
		return err
	}

	fmt.Println("--- 3. UPDATE FIELDS ---")
	relabel := "Cart 1 UPDATED"
	if _, err := repo.UpdateCart(ctx, cart1.ID, &relabel, nil); err != nil {
		return err
	}
	if _, err := repo.RenameItem(ctx, itemRefs[0].ID, "Item 1 UPDATED"); err != nil {
		return err
	}
	if err := printState(ctx, repo, "After renaming"); err != nil {
		return err
	}

	fmt.Println("--- 4. DELETE ---")
	if err := aggregates.Delete[carts.Cart](ctx, repo, cart3.ID); err != nil {
		return err
	}
	if err := aggregates.Delete[carts.Item](ctx, repo, itemRefs[5].ID); err != nil {
		return err
	}
	if err := printState(ctx, repo, "After deleting"); err != nil {
		return err
	}

	fmt.Println("--- 5. EAGER FETCH ---")
	c, err := repo.FetchCartWithItems(ctx, cart1.ID)
	if err != nil {
		return err
	}
	if c != nil {
		fmt.Printf("Items of cart '%s':\n", c.LabelOr("null"))
		for _, it := range c.Items {
			fmt.Println("- " + it.Name)
		}
	}
	return nil
}

func printState(ctx context.Context, repo *aggregates.Repository, title string) error {
	cs, err := repo.ListCartsWithItems(ctx)
	if err != nil {
		return err
	}
	items, err := aggregates.List[carts.Item](ctx, repo, nil)
	if err != nil {
		return err
	}
	fmt.Printf("\n[%s]\n", title)
	fmt.Println("CARTS:")
	fmt.Println(carts.FormatList(cs))
	fmt.Println("ITEMS:")
	fmt.Println(carts.FormatList(items))
	fmt.Println("------------------------------")
	fmt.Println()
	return nil
}

func purgeAll(ctx context.Context, repo *aggregates.Repository) error {
	cs, err := aggregates.List[carts.Cart](ctx, repo, nil)
	if err != nil {
		return err
	}
	items, err := aggregates.List[carts.Item](ctx, repo, nil)
	if err != nil {
		return err
	}
	cartIDs := make([]int64, 0, len(cs))
	for _, c := range cs {
		cartIDs = append(cartIDs, c.ID)
	}
	itemIDs := make([]int64, 0, len(items))
	for _, it := range items {
		itemIDs = append(itemIDs, it.ID)
	}
	return repo.Purge(ctx, cartIDs, itemIDs)
}
