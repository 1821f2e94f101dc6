package i18n

func polishSet() TranslationSet {
	return TranslationSet{
		ErrorOccurred:      "Wystąpił błąd! Uruchom ponownie z --log-level debug, aby zobaczyć szczegóły",
		ConnectionFailed:   "Błąd połączenia z klientem docker. Może być konieczne ponowne uruchomienie klienta docker",
		CreatingDockerfile: "Tworzenie pliku dockerfile {{path}}",
		BuildingImage:      "Budowanie {{tag}}",
		ImageUpToDate:      "Obraz {{tag}} jest aktualny, pomijanie budowania",
		PushingImage:       "Wysyłanie {{ref}}",
		RunningContainer:   "Uruchamianie {{tag}}",
	}
}
