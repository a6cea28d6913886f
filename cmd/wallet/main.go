package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"wallet/internal/config"
	"wallet/internal/db"
	"wallet/internal/ledger"
	"wallet/internal/models"
	"wallet/internal/money"
	"wallet/internal/services"
	"wallet/internal/store"

	"golang.org/x/term"
)

const usage = `Usage: wallet [-db <database_url>] <command> [flags] [args]

Commands:
  signup    create an account and sign in
  login     sign in
  logout    sign out
  whoami    print the signed-in user
  accounts  list the accounts stored in this database
  show      print balance, goal and paycheck status
  init      set the starting balance: init <amount>
  gain      record money in: gain [-source cash|bank] <amount> <reason>
  spend     record money out: spend [-source cash|bank] [-category name] <amount> <reason>
  history   list transactions, newest first
  delete    delete a transaction: delete <id>
  undo      delete the newest transaction
  goal      set the savings goal: goal <name> <amount>
  job       set the job profile used for paychecks
  paycheck  show paycheck status, or collect it with -collect
  spending  spending per category
  check     compare the stored balance with the transaction log
  activity  recent account activity
  import    import a legacy browser export: import [-overwrite] <file>
`

var errNotSignedIn = errors.New("not signed in, run login first")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	ctx     context.Context
	service  *services.WalletService
	accounts *store.AccountStore
	session  *store.SessionStore
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg := config.Load()
	fs := flag.NewFlagSet("wallet", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	dbURL := fs.String("db", cfg.DatabaseURL, "Database URL or SQLite file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("missing command")
	}

	database, err := db.Connect(*dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	ctx := context.Background()
	if _, err := db.Migrate(ctx, database); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	accounts := store.NewAccountStore(database)
	a := &app{
		ctx:      ctx,
		service:  services.NewWalletService(db.NewTxRunner(database), accounts, store.NewAuditStore(database), nil, nil, cfg.MaxAvatarBytes),
		accounts: accounts,
		session:  store.NewSessionStore(database),
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
	}
	return a.dispatch(fs.Arg(0), fs.Args()[1:])
}

func (a *app) dispatch(command string, args []string) error {
	switch command {
	case "signup":
		return a.signup(args)
	case "login":
		return a.login(args)
	case "logout":
		return a.session.Clear(a.ctx)
	case "whoami":
		return a.whoami()
	case "accounts":
		return a.listAccounts()
	case "show":
		return a.show()
	case "init":
		return a.initBalance(args)
	case "gain":
		return a.record(models.KindGain, args)
	case "spend":
		return a.record(models.KindSpend, args)
	case "history":
		return a.history(args)
	case "delete":
		return a.deleteTransaction(args)
	case "undo":
		return a.undo()
	case "goal":
		return a.goal(args)
	case "job":
		return a.job(args)
	case "paycheck":
		return a.paycheck(args)
	case "spending":
		return a.spending()
	case "check":
		return a.check()
	case "activity":
		return a.activity(args)
	case "import":
		return a.importExport(args)
	case "help":
		fmt.Fprint(a.stdout, usage)
		return nil
	}
	return fmt.Errorf("unknown command %q", command)
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// currentUser resolves the session, dropping it when the account is gone.
func (a *app) currentUser() (string, error) {
	username, err := a.session.Current(a.ctx)
	if err != nil {
		return "", err
	}
	if username == "" {
		return "", errNotSignedIn
	}
	exists, err := a.service.AccountExists(a.ctx, username)
	if err != nil {
		return "", err
	}
	if !exists {
		_ = a.session.Clear(a.ctx)
		return "", errNotSignedIn
	}
	return username, nil
}

func (a *app) credentials(name string, args []string) (string, string, error) {
	fs := a.flags(name)
	user := fs.String("user", "", "Username")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	if *user == "" {
		return "", "", fmt.Errorf("missing required flags: user")
	}
	password := *passwordFlag
	if password == "" {
		fmt.Fprint(a.stdout, "Password: ")
		var err error
		password, err = readPassword(a.stdin)
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(a.stdout)
	}
	return *user, password, nil
}

func (a *app) signup(args []string) error {
	username, password, err := a.credentials("signup", args)
	if err != nil {
		return err
	}
	account, err := a.service.Signup(a.ctx, username, password)
	if err != nil {
		return err
	}
	if err := a.session.Set(a.ctx, account.Username); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Account %s created, signed in\n", account.Username)
	return nil
}

func (a *app) login(args []string) error {
	username, password, err := a.credentials("login", args)
	if err != nil {
		return err
	}
	account, err := a.service.Authenticate(a.ctx, username, password)
	if err != nil {
		return err
	}
	if err := a.session.Set(a.ctx, account.Username); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Signed in as %s\n", account.Username)
	return nil
}

func (a *app) whoami() error {
	username, err := a.currentUser()
	if errors.Is(err, errNotSignedIn) {
		fmt.Fprintln(a.stdout, "not signed in")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, username)
	return nil
}

// listAccounts prints every stored username, marking the signed-in one.
func (a *app) listAccounts() error {
	names, err := a.accounts.List(a.ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(a.stdout, "No accounts")
		return nil
	}
	current, err := a.session.Current(a.ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		marker := " "
		if name == current {
			marker = "*"
		}
		fmt.Fprintf(a.stdout, "%s %s\n", marker, name)
	}
	return nil
}

func (a *app) show() error {
	username, err := a.currentUser()
	if err != nil {
		return err
	}
	summary, err := a.service.Wallet(a.ctx, username)
	if err != nil {
		return err
	}
	account := summary.Account
	fmt.Fprintf(a.stdout, "User: %s\n", account.Username)
	if !account.BalanceSet {
		fmt.Fprintln(a.stdout, "Balance: not set, run init <amount>")
	} else {
		fmt.Fprintf(a.stdout, "Balance: %s\n", money.FormatMinor(account.Balance))
	}
	if account.Goal != nil {
		fmt.Fprintf(a.stdout, "Goal: %s %s (%d%% saved)\n", account.Goal.Name, money.FormatMinor(account.Goal.Amount), goalProgress(account.Balance, account.Goal.Amount))
	}
	printPaycheck(a.stdout, summary.Paycheck)
	return nil
}

func goalProgress(balance, target int64) int64 {
	if target <= 0 || balance <= 0 {
		return 0
	}
	if balance >= target {
		return 100
	}
	return balance * 100 / target
}

func (a *app) initBalance(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: init <amount>")
	}
	username, err := a.currentUser()
	if err != nil {
		return err
	}
	change, err := a.service.InitializeBalance(a.ctx, username, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Balance set to %s\n", money.FormatMinor(change.Balance))
	return nil
}

func (a *app) record(kind models.Kind, args []string) error {
	fs := a.flags(string(kind))
	source := fs.String("source", string(models.SourceCash), "cash or bank")
	category := fs.String("category", "", "Spending category")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: %s [-source cash|bank] <amount> <reason>", kind)
	}
	username, err := a.currentUser()
	if err != nil {
		return err
	}
	change, err := a.service.RecordTransaction(a.ctx, services.TransactionRequest{
		Username: username,
		Kind:     kind,
		Amount:   fs.Arg(0),
		Reason:   strings.Join(fs.Args()[1:], " "),
		Source:   *source,
		Category: *category,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "#%d %s %s, balance %s\n", change.Transaction.ID, kind, money.FormatMinor(change.Transaction.Amount), money.FormatMinor(change.Balance))
	return nil
}

func (a *app) history(args []string) error {
	fs := a.flags("history")
	kind := fs.String("type", "", "Only show set, gain or spend")
	limit := fs.Int("limit", 0, "Maximum rows to print (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	username, err := a.currentUser()
	if err != nil {
		return err
	}
	summary, err := a.service.Wallet(a.ctx, username)
	if err != nil {
		return err
	}
	var rows []models.Transaction
	for _, tx := range summary.Account.Transactions {
		if *kind == "" || string(tx.Kind) == *kind {
			rows = append(rows, tx)
		}
	}
	if *limit > 0 && len(rows) > *limit {
		rows = rows[:*limit]
	}
	if len(rows) == 0 {
		fmt.Fprintln(a.stdout, "No transactions")
		return nil
	}
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTYPE\tAMOUNT\tSOURCE\tCATEGORY\tREASON")
	for _, tx := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", tx.ID, tx.CreatedAt.Local().Format("2006-01-02"), tx.Kind, money.FormatMinor(tx.Effect()), tx.Source, tx.Category, tx.Reason)
	}
	return w.Flush()
}

func (a *app) deleteTransaction(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid transaction id %q", args[0])
	}
	username, err := a.currentUser()
	if err != nil {
		return err
	}
	change, err := a.service.DeleteTransaction(a.ctx, username, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Deleted #%d, balance %s\n", id, money.FormatMinor(change.Balance))
	return nil
}

func (a *app) undo() error {
	username, err := a.currentUser()
	if err != nil {
		return err
	}
	change, err := a.service.UndoLast(a.ctx, username)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Undid #%d %s, balance %s\n", change.Transaction.ID, change.Transaction.Reason, money.FormatMinor(change.Balance))
	return nil
}

func (a *app) goal(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: goal <name> <amount>")
	}
	username, err := a.currentUser()
	if err != nil {
		return err
	}
	last := len(args) - 1
	goal, err := a.service.SetGoal(a.ctx, username, strings.Join(args[:last], " "), args[last])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Goal set: %s %s\n", goal.Name, money.FormatMinor(goal.Amount))
	return nil
}

func (a *app) job(args []string) error {
	fs := a.flags("job")
	rate := fs.String("rate", "", "Hourly rate")
	weekday := fs.String("weekday-hours", "", "Hours worked each weekday")
	weekend := fs.Bool("weekend", false, "Also works weekends")
	weekendHours := fs.String("weekend-hours", "", "Hours worked each weekend day")
	if err := fs.Parse(args); err != nil {
		return err
	}
	username, err := a.currentUser()
	if err != nil {
		return err
	}
	summary, err := a.service.SetJobProfile(a.ctx, username, services.JobRequest{
		HourlyRate:   *rate,
		WeekdayHours: *weekday,
		Weekend:      *weekend,
		WeekendHours: *weekendHours,
	})
	if err != nil {
		return err
	}
	printPaycheck(a.stdout, summary)
	return nil
}

func (a *app) paycheck(args []string) error {
	fs := a.flags("paycheck")
	collect := fs.Bool("collect", false, "Collect the paycheck when it is ready")
	if err := fs.Parse(args); err != nil {
		return err
	}
	username, err := a.currentUser()
	if err != nil {
		return err
	}
	if *collect {
		change, err := a.service.CollectPaycheck(a.ctx, username)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Collected %s, balance %s\n", money.FormatMinor(change.Transaction.Amount), money.FormatMinor(change.Balance))
		return nil
	}
	summary, err := a.service.PaycheckStatus(a.ctx, username)
	if err != nil {
		return err
	}
	printPaycheck(a.stdout, summary)
	return nil
}

func printPaycheck(w io.Writer, summary services.PaycheckSummary) {
	status := summary.Status
	switch status.State {
	case ledger.PaycheckDisabled:
		fmt.Fprintln(w, "Paycheck: no job set")
		return
	case ledger.PaycheckWaiting:
		fmt.Fprintf(w, "Paycheck: %s in %s\n", money.FormatMinor(status.WeeklyIncome), ledger.FormatCountdown(status.Remaining))
	default:
		fmt.Fprintf(w, "Paycheck: %s ready to collect\n", money.FormatMinor(status.WeeklyIncome))
	}
	fmt.Fprintf(w, "Monthly estimate: %s\n", money.FormatMinor(summary.MonthlyEstimate))
}

func (a *app) spending() error {
	username, err := a.currentUser()
	if err != nil {
		return err
	}
	totals, err := a.service.Spending(a.ctx, username)
	if err != nil {
		return err
	}
	if len(totals) == 0 {
		fmt.Fprintln(a.stdout, "No spending yet")
		return nil
	}
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tTOTAL\tCOUNT\tSHARE")
	for _, item := range totals {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1f%%\n", item.Category, money.FormatMinor(item.Total), item.Count, item.Percentage)
	}
	return w.Flush()
}

func (a *app) check() error {
	username, err := a.currentUser()
	if err != nil {
		return err
	}
	result, err := a.service.SelfCheck(a.ctx, username)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Stored balance: %s\nTransaction sum: %s\n", money.FormatMinor(result.StoredBalance), money.FormatMinor(result.LedgerSum))
	if result.Balanced() {
		fmt.Fprintln(a.stdout, "OK")
		return nil
	}
	return fmt.Errorf("balance differs from transactions by %s", money.FormatMinor(result.Difference))
}

func (a *app) activity(args []string) error {
	fs := a.flags("activity")
	limit := fs.Int("limit", 20, "Maximum entries")
	if err := fs.Parse(args); err != nil {
		return err
	}
	username, err := a.currentUser()
	if err != nil {
		return err
	}
	entries, err := a.service.Activity(a.ctx, username, *limit, 0)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", formatAuditTime(entry.CreatedAt), entry.Action, entry.Data)
	}
	return nil
}

// formatAuditTime renders created_at as scanned from either driver.
func formatAuditTime(value any) string {
	switch v := value.(type) {
	case time.Time:
		return v.Local().Format("2006-01-02 15:04")
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (a *app) importExport(args []string) error {
	fs := a.flags("import")
	overwrite := fs.Bool("overwrite", false, "Replace accounts that already exist")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: import [-overwrite] <file>")
	}
	file, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer file.Close()

	export, err := store.DecodeLegacyExport(file)
	if err != nil {
		return err
	}
	result, err := a.service.Import(a.ctx, export.Accounts, *overwrite)
	if err != nil {
		return err
	}
	for _, name := range result.Skipped {
		fmt.Fprintf(a.stdout, "Skipped %s (already exists)\n", name)
	}
	fmt.Fprintf(a.stdout, "Imported %d account(s)\n", len(result.Imported))
	if export.LoggedInUser != "" {
		for _, name := range result.Imported {
			if name == export.LoggedInUser {
				return a.session.Set(a.ctx, name)
			}
		}
	}
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
